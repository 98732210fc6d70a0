package service

import (
	"os"
	"path/filepath"
	"prdy-go/internal/model"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPRDService(t *testing.T) (PRDService, string) {
	t.Helper()
	dir := t.TempDir()
	svc, err := NewPRDService(dir)
	require.NoError(t, err)
	return svc, dir
}

// 直接落一个指定文件名和修改时间的文件，绕过 Save 的时间戳（便于构造列表场景）。
func writeDoc(t *testing.T, dir, filename, content string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(dir, filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestCreateFilename_Grammar(t *testing.T) {
	prdPattern := regexp.MustCompile(`^[a-z0-9-]*-prd-\d{8}-\d{6}\.md$`)
	researchPattern := regexp.MustCompile(`^[a-z0-9-]*-competitive-analysis-\d{8}-\d{6}\.md$`)

	cases := []struct {
		name       string
		wantPrefix string
	}{
		{"Widget", "widget"},
		{"My Cool App", "my-cool-app"},
		{"Task_Flow  2000", "task-flow-2000"},
		{"--Edge--Case--", "edge--case"}, // 连续连字符保留，只收拢空白与下划线
		{"Widget!!! (beta)", "widget-beta"},
	}
	for _, tc := range cases {
		got := CreateFilename(tc.name, model.DocumentKindPRD)
		assert.Regexp(t, prdPattern, got, "input %q", tc.name)
		assert.Equal(t, tc.wantPrefix, ProductPrefix(got), "input %q", tc.name)

		gotResearch := CreateFilename(tc.name, model.DocumentKindResearch)
		assert.Regexp(t, researchPattern, gotResearch, "input %q", tc.name)
		assert.Equal(t, tc.wantPrefix, ProductPrefix(gotResearch), "input %q", tc.name)
	}
}

func TestCreateFilename_NoAlphanumericContent(t *testing.T) {
	// 产品名不含任何字母数字时前缀退化为空串，仍由时间戳和类型标记保证可区分
	got := CreateFilename("!!!???", model.DocumentKindPRD)
	assert.Regexp(t, `^-prd-\d{8}-\d{6}\.md$`, got)
	assert.Equal(t, "", ProductPrefix(got))
}

func TestClassify(t *testing.T) {
	assert.True(t, IsPRDFile("widget-prd-20240113-143022.md"))
	assert.False(t, IsPRDFile("widget-competitive-analysis-20240113-143022.md"))
	assert.True(t, IsResearchFile("widget-competitive-analysis-20240113-143022.md"))
	assert.False(t, IsResearchFile("notes.md"))
}

func TestSave_RoundTripByteExact(t *testing.T) {
	svc, dir := newTestPRDService(t)

	content := "# Widget - Product Requirements Document\n\nSome **body** text.\nNo trailing newline"
	filename, err := svc.Save(content, "")
	require.NoError(t, err)
	assert.Regexp(t, `^widget-prd-\d{8}-\d{6}\.md$`, filename)

	raw, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)
	assert.Equal(t, content, string(raw))

	got, err := svc.Get(filename)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestSave_ProductNameFromHeading(t *testing.T) {
	svc, _ := newTestPRDService(t)

	// 标题带 " - " 分隔符时取前半部分
	filename, err := svc.Save("# TaskFlow - Product Requirements Document\n\n...", "")
	require.NoError(t, err)
	assert.Regexp(t, `^taskflow-prd-`, filename)

	// 无分隔符时取整个标题
	filename, err = svc.Save("# Standalone Title\n\n...", "")
	require.NoError(t, err)
	assert.Regexp(t, `^standalone-title-prd-`, filename)

	// 没有任何标题时回退为 Untitled
	filename, err = svc.Save("plain text without heading", "")
	require.NoError(t, err)
	assert.Regexp(t, `^untitled-prd-`, filename)
}

func TestSave_EmptyContentRejected(t *testing.T) {
	svc, dir := newTestPRDService(t)

	_, err := svc.Save("   \n\t", "Widget")
	apiErr, ok := model.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrKindValidation, apiErr.Kind)

	// 无副作用：目录保持为空
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSaveResearch_PrependsHeader(t *testing.T) {
	svc, dir := newTestPRDService(t)

	filename, err := svc.SaveResearch("analysis body", "Widget")
	require.NoError(t, err)
	assert.Regexp(t, `^widget-competitive-analysis-\d{8}-\d{6}\.md$`, filename)

	raw, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)
	assert.Regexp(t, `^# Widget - Competitive Analysis\n\n\*\*Generated:\*\* \d{4}-\d{2}-\d{2} \d{2}:\d{2}\n\n---\n\nanalysis body$`, string(raw))
}

func TestSaveResearch_Validation(t *testing.T) {
	svc, _ := newTestPRDService(t)

	_, err := svc.SaveResearch("", "Widget")
	apiErr, ok := model.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrKindValidation, apiErr.Kind)

	_, err = svc.SaveResearch("content", "  ")
	apiErr, ok = model.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrKindValidation, apiErr.Kind)
}

func TestAppend_PreservesPriorBytes(t *testing.T) {
	svc, dir := newTestPRDService(t)

	original := "# Widget - PRD\n\nOriginal content"
	filename, err := svc.Save(original, "Widget")
	require.NoError(t, err)

	require.NoError(t, svc.Append(filename, "## Competitive Analysis\n\nmore"))

	raw, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)
	assert.Equal(t, original+"\n\n## Competitive Analysis\n\nmore", string(raw))
}

func TestAppend_MissingFile(t *testing.T) {
	svc, _ := newTestPRDService(t)

	err := svc.Append("missing-prd-20240101-100000.md", "content")
	apiErr, ok := model.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrKindNotFound, apiErr.Kind)
}

func TestArchive_MovesFileWithoutMutation(t *testing.T) {
	svc, dir := newTestPRDService(t)

	content := "# Widget - PRD\n\nbody"
	filename, err := svc.Save(content, "Widget")
	require.NoError(t, err)

	require.NoError(t, svc.Archive(filename))

	// 原位置不存在，old/ 下内容逐字节不变
	_, err = os.Stat(filepath.Join(dir, filename))
	assert.True(t, os.IsNotExist(err))
	raw, err := os.ReadFile(filepath.Join(dir, "old", filename))
	require.NoError(t, err)
	assert.Equal(t, content, string(raw))

	// 归档后不再出现在活跃列表中
	prds, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, prds)
}

func TestArchive_MissingFile(t *testing.T) {
	svc, _ := newTestPRDService(t)

	err := svc.Archive("missing-prd-20240101-100000.md")
	apiErr, ok := model.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrKindNotFound, apiErr.Kind)
}

func TestArchiveWithResearch_Cascades(t *testing.T) {
	svc, dir := newTestPRDService(t)
	now := time.Now()

	writeDoc(t, dir, "widget-prd-20240113-143022.md", "prd", now)
	writeDoc(t, dir, "widget-competitive-analysis-20240114-090000.md", "r1", now)
	writeDoc(t, dir, "widget-competitive-analysis-20240115-090000.md", "r2", now)
	writeDoc(t, dir, "other-competitive-analysis-20240115-090000.md", "r3", now)

	archived, err := svc.ArchiveWithResearch("widget-prd-20240113-143022.md")
	require.NoError(t, err)
	assert.Len(t, archived, 3)
	assert.Equal(t, "widget-prd-20240113-143022.md", archived[0])
	assert.ElementsMatch(t, []string{
		"widget-prd-20240113-143022.md",
		"widget-competitive-analysis-20240114-090000.md",
		"widget-competitive-analysis-20240115-090000.md",
	}, archived)

	// 不同前缀的调研文档仍在活跃列表（作为孤儿调研不挂在任何 PRD 下，但文件仍存在）
	_, err = os.Stat(filepath.Join(dir, "other-competitive-analysis-20240115-090000.md"))
	assert.NoError(t, err)

	prds, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, prds)
}

func TestArchiveWithResearch_PrimaryFailure(t *testing.T) {
	svc, dir := newTestPRDService(t)
	writeDoc(t, dir, "widget-competitive-analysis-20240114-090000.md", "r1", time.Now())

	_, err := svc.ArchiveWithResearch("widget-prd-20240113-143022.md")
	apiErr, ok := model.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, model.ErrKindNotFound, apiErr.Kind)

	// 主文件归档失败时不做任何级联
	_, statErr := os.Stat(filepath.Join(dir, "widget-competitive-analysis-20240114-090000.md"))
	assert.NoError(t, statErr)
}

func TestList_NewestFirst(t *testing.T) {
	svc, dir := newTestPRDService(t)

	base := time.Now().Add(-48 * time.Hour)
	writeDoc(t, dir, "older-prd-20240101-100000.md", "old", base)
	writeDoc(t, dir, "newer-prd-20240115-100000.md", "new", base.Add(24*time.Hour))

	prds, err := svc.List()
	require.NoError(t, err)
	require.Len(t, prds, 2)
	assert.Equal(t, "newer-prd-20240115-100000.md", prds[0].Filename)
	assert.Equal(t, "older-prd-20240101-100000.md", prds[1].Filename)
	assert.Equal(t, "Newer", prds[0].Name)
}

func TestList_GroupsResearchUnderPRD(t *testing.T) {
	svc, dir := newTestPRDService(t)

	base := time.Now().Add(-72 * time.Hour)
	writeDoc(t, dir, "widget-prd-20240113-143022.md", "prd", base)
	writeDoc(t, dir, "widget-competitive-analysis-20240114-090000.md", "r1", base.Add(time.Hour))
	writeDoc(t, dir, "widget-competitive-analysis-20240115-090000.md", "r2", base.Add(2*time.Hour))
	writeDoc(t, dir, "gadget-prd-20240110-100000.md", "prd2", base.Add(3*time.Hour))
	writeDoc(t, dir, "notes.md", "ignored", base)

	prds, err := svc.List()
	require.NoError(t, err)
	require.Len(t, prds, 2)

	// gadget 更新，排第一；widget 挂两条调研，调研也按时间倒序
	assert.Equal(t, "gadget-prd-20240110-100000.md", prds[0].Filename)
	assert.Empty(t, prds[0].Research)

	assert.Equal(t, "widget-prd-20240113-143022.md", prds[1].Filename)
	require.Len(t, prds[1].Research, 2)
	assert.Equal(t, "widget-competitive-analysis-20240115-090000.md", prds[1].Research[0].Filename)
	assert.Equal(t, "widget-competitive-analysis-20240114-090000.md", prds[1].Research[1].Filename)
}

func TestList_SamePrefixResearchGoesToNewestPRD(t *testing.T) {
	svc, dir := newTestPRDService(t)

	base := time.Now().Add(-72 * time.Hour)
	writeDoc(t, dir, "widget-prd-20240101-100000.md", "v1", base)
	writeDoc(t, dir, "widget-prd-20240115-100000.md", "v2", base.Add(time.Hour))
	writeDoc(t, dir, "widget-competitive-analysis-20240116-090000.md", "r", base.Add(2*time.Hour))

	prds, err := svc.List()
	require.NoError(t, err)
	require.Len(t, prds, 2)

	// 同前缀的调研文档归属到最新的那个 PRD
	assert.Equal(t, "widget-prd-20240115-100000.md", prds[0].Filename)
	require.Len(t, prds[0].Research, 1)
	assert.Empty(t, prds[1].Research)
}

func TestProductPrefix(t *testing.T) {
	assert.Equal(t, "widget", ProductPrefix("widget-prd-20240113-143022.md"))
	assert.Equal(t, "my-cool-app", ProductPrefix("my-cool-app-competitive-analysis-20240113-143022.md"))
	assert.Equal(t, "notes", ProductPrefix("notes.md"))
}
