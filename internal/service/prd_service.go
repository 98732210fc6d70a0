package service

import (
	"fmt"
	"os"
	"path/filepath"
	"prdy-go/internal/model"
	"prdy-go/pkg/log"
	"regexp"
	"sort"
	"strings"
	"time"
)

// 文件名中的类型标记，文件一经落盘即由文件名唯一确定类型与产品前缀。
const (
	prdMarker      = "-prd-"
	researchMarker = "-competitive-analysis-"

	outputExt  = ".md"
	archiveDir = "old"
)

var (
	unsafeCharsRe = regexp.MustCompile(`[^\w\s-]`)
	separatorRe   = regexp.MustCompile(`[\s_]+`)
	timestampRe   = regexp.MustCompile(`-\d{8}-\d{6}$`)
	prdSuffixRe   = regexp.MustCompile(`-prd$`)
	rscSuffixRe   = regexp.MustCompile(`-competitive-analysis$`)
)

// PRDService 定义了 PRD 文档的存储、列表与归档操作。
type PRDService interface {
	// Save 将 PRD 内容原样落盘。productName 为空时从内容首个一级标题推导。
	// 返回生成的文件名。
	Save(content, productName string) (string, error)
	// SaveResearch 在内容前拼接生成头后落盘为调研文档，返回文件名。
	SaveResearch(content, productName string) (string, error)
	// Get 按文件名读取文档内容，字节级原样返回。
	Get(filename string) (string, error)
	// Append 向既有文档追加 "\n\n"+content，原有字节不变。
	Append(filename, content string) error
	// Archive 将文档移动到 old/ 子目录，内容不做任何修改。
	Archive(filename string) error
	// ArchiveWithResearch 归档 PRD 及所有共享产品前缀的调研文档（逐个尽力而为），
	// 返回实际归档的文件名列表；仅当 PRD 本身归档失败时返回错误。
	ArchiveWithResearch(filename string) ([]string, error)
	// List 扫描存储目录，将调研文档归组到其 PRD 下，按创建时间倒序返回。
	List() ([]model.DocumentInfo, error)
}

type prdService struct {
	outputDir string
	fileLocks keyedMutex
}

// NewPRDService 创建一个新的 PRDService 实例，并确保存储目录存在。
func NewPRDService(outputDir string) (PRDService, error) {
	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &prdService{outputDir: outputDir}, nil
}

// CreateFilename 从自由文本的产品名生成安全的带时间戳文件名。
// 同一产品名在同一秒内的两次调用会产生同名文件，这是已知并接受的限制；
// 若需要绝对无碰撞，应注入单调计数器或亚秒级精度。
func CreateFilename(productName, kind string) string {
	safe := strings.ToLower(productName)
	safe = unsafeCharsRe.ReplaceAllString(safe, "")
	safe = separatorRe.ReplaceAllString(safe, "-")
	safe = strings.Trim(safe, "-")

	marker := "prd"
	if kind == model.DocumentKindResearch {
		marker = "competitive-analysis"
	}
	timestamp := time.Now().Format("20060102-150405")
	return fmt.Sprintf("%s-%s-%s%s", safe, marker, timestamp, outputExt)
}

// ProductPrefix 从文件名提取稳定的产品前缀（分组键）：
// 依次剥离扩展名、时间戳、类型标记。
func ProductPrefix(filename string) string {
	name := strings.TrimSuffix(filename, outputExt)
	name = timestampRe.ReplaceAllString(name, "")
	name = prdSuffixRe.ReplaceAllString(name, "")
	name = rscSuffixRe.ReplaceAllString(name, "")
	return name
}

// IsPRDFile 判断文件名是否为 PRD 文档。
func IsPRDFile(filename string) bool {
	return strings.Contains(filename, prdMarker)
}

// IsResearchFile 判断文件名是否为竞品调研文档。
func IsResearchFile(filename string) bool {
	return strings.Contains(filename, researchMarker)
}

// displayName 从文件名推导展示名：剥离标记与时间戳后去连字符并逐词首字母大写。
func displayName(filename string) string {
	words := strings.Split(ProductPrefix(filename), "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// extractProductName 从 PRD 内容的首个一级标题推导产品名。
// 标题含 " - " 分隔符时取分隔符之前的部分，找不到标题时回退为 "Untitled"。
func extractProductName(content string) string {
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if strings.HasPrefix(line, "# ") {
			title := strings.TrimSpace(line[2:])
			if idx := strings.Index(title, " - "); idx >= 0 {
				return title[:idx]
			}
			return title
		}
	}
	return "Untitled"
}

// Save 将 PRD 内容原样写入新文件。
func (s *prdService) Save(content, productName string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", model.NewAPIError(model.ErrKindValidation, "内容不能为空")
	}
	if productName == "" {
		productName = extractProductName(content)
	}

	filename := CreateFilename(productName, model.DocumentKindPRD)
	if err := os.WriteFile(filepath.Join(s.outputDir, filename), []byte(content), 0644); err != nil {
		return "", model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("写入 PRD 文件失败: %v", err))
	}
	log.Infof("PRD 已保存: %s", filename)
	return filename, nil
}

// SaveResearch 在调研内容前拼接标题、生成时间与分隔线后落盘。
func (s *prdService) SaveResearch(content, productName string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", model.NewAPIError(model.ErrKindValidation, "内容不能为空")
	}
	if strings.TrimSpace(productName) == "" {
		return "", model.NewAPIError(model.ErrKindValidation, "产品名称不能为空")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("# %s - Competitive Analysis\n\n", productName))
	b.WriteString(fmt.Sprintf("**Generated:** %s\n\n", time.Now().Format("2006-01-02 15:04")))
	b.WriteString("---\n\n")
	b.WriteString(content)

	filename := CreateFilename(productName, model.DocumentKindResearch)
	if err := os.WriteFile(filepath.Join(s.outputDir, filename), []byte(b.String()), 0644); err != nil {
		return "", model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("写入调研文件失败: %v", err))
	}
	log.Infof("竞品调研已保存: %s", filename)
	return filename, nil
}

// Get 读取文档内容。
func (s *prdService) Get(filename string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.outputDir, filename))
	if err != nil {
		return "", model.NewAPIError(model.ErrKindNotFound, "PRD 不存在")
	}
	return string(data), nil
}

// Append 向既有文档追加内容，追加与归档在同一文件名上串行执行。
func (s *prdService) Append(filename, content string) error {
	unlock := s.fileLocks.Lock(filename)
	defer unlock()

	path := filepath.Join(s.outputDir, filename)
	if _, err := os.Stat(path); err != nil {
		return model.NewAPIError(model.ErrKindNotFound, "PRD 不存在")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("打开文件失败: %v", err))
	}
	defer f.Close()

	if _, err := f.WriteString("\n\n" + content); err != nil {
		return model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("追加内容失败: %v", err))
	}
	return nil
}

// Archive 将文档重命名到 old/ 子目录，重命名本身是原子操作。
func (s *prdService) Archive(filename string) error {
	unlock := s.fileLocks.Lock(filename)
	defer unlock()

	path := filepath.Join(s.outputDir, filename)
	if _, err := os.Stat(path); err != nil {
		return model.NewAPIError(model.ErrKindNotFound, "文件不存在")
	}

	oldDir := filepath.Join(s.outputDir, archiveDir)
	if err := os.MkdirAll(oldDir, os.ModePerm); err != nil {
		return model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("创建归档目录失败: %v", err))
	}
	if err := os.Rename(path, filepath.Join(oldDir, filename)); err != nil {
		return model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("移动文件失败: %v", err))
	}
	log.Infof("文档已归档: %s", filename)
	return nil
}

// ArchiveWithResearch 归档 PRD 并级联归档同前缀的调研文档。
// 单个调研文档归档失败只记录跳过，不影响整体结果。
func (s *prdService) ArchiveWithResearch(filename string) ([]string, error) {
	prefix := ProductPrefix(filename)

	if err := s.Archive(filename); err != nil {
		return nil, err
	}
	archived := []string{filename}

	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		return archived, nil
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !IsResearchFile(name) || ProductPrefix(name) != prefix {
			continue
		}
		if err := s.Archive(name); err != nil {
			log.Warnf("归档调研文档失败，已跳过: %s, err=%v", name, err)
			continue
		}
		archived = append(archived, name)
	}
	return archived, nil
}

// List 扫描存储目录并返回按创建时间倒序的 PRD 列表，调研文档挂在其 PRD 之下。
// 当多个 PRD 共享同一前缀时，调研文档归属到其中最新的那个。
func (s *prdService) List() ([]model.DocumentInfo, error) {
	entries, err := os.ReadDir(s.outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []model.DocumentInfo{}, nil
		}
		return nil, model.NewAPIError(model.ErrKindPersistence, fmt.Sprintf("读取存储目录失败: %v", err))
	}

	prds := []model.DocumentInfo{}
	researches := []model.DocumentInfo{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, outputExt) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		info := model.DocumentInfo{
			Filename:      name,
			Name:          displayName(name),
			Date:          fi.ModTime().Format("Jan 02, 2006"),
			Created:       fi.ModTime(),
			Size:          fi.Size(),
			ProductPrefix: ProductPrefix(name),
		}

		switch {
		case IsPRDFile(name):
			info.Research = []model.DocumentInfo{}
			prds = append(prds, info)
		case IsResearchFile(name):
			researches = append(researches, info)
		}
		// 其余 .md 文件不属于任何已知类型，列表忽略
	}

	// 先按创建时间倒序排列 PRD，使同前缀的调研文档归属到最新的 PRD
	sort.Slice(prds, func(i, j int) bool {
		return prds[i].Created.After(prds[j].Created)
	})

	for _, research := range researches {
		for i := range prds {
			if research.ProductPrefix == prds[i].ProductPrefix {
				prds[i].Research = append(prds[i].Research, research)
				break
			}
		}
	}

	for i := range prds {
		sort.Slice(prds[i].Research, func(a, b int) bool {
			return prds[i].Research[a].Created.After(prds[i].Research[b].Created)
		})
	}
	return prds, nil
}
