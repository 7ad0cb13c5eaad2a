// Package docutil 提供 PDF 文档处理工具函数。
package docutil

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// WriteTemp 将上传内容写入临时文件，返回文件路径和清理函数。
// 调用方必须在处理完成后调用 cleanup 删除临时文件。
func WriteTemp(r io.Reader, pattern string) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("创建临时文件失败: %w", err)
	}

	path := f.Name()
	cleanup := func() {
		_ = os.Remove(path)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("关闭临时文件失败: %w", err)
	}

	return path, cleanup, nil
}

// Page 表示 PDF 中一页的提取结果。
type Page struct {
	// Number 页码，从 1 开始。
	Number int
	// Text 该页的纯文本内容。
	Text string
}

// ExtractPDFPages 从 PDF 文件中逐页提取纯文本。
// 解析失败或为空的页面会被跳过，全部页面为空时返回错误。
func ExtractPDFPages(path string) ([]Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开 PDF 文件失败: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("读取文件信息失败: %w", err)
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("解析 PDF 失败: %w", err)
	}

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// 跳过无法解析的页面，不让单页错误中断整个文档
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		pages = append(pages, Page{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("PDF 中未提取到任何文本")
	}

	return pages, nil
}

// ExtractPDFText 从 PDF 文件中提取纯文本，每页内容以 "Page N" 行作为前缀。
func ExtractPDFText(path string) (string, error) {
	pages, err := ExtractPDFPages(path)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, page := range pages {
		fmt.Fprintf(&sb, "Page %d\n%s\n\n", page.Number, page.Text)
	}
	return sb.String(), nil
}

// IsPDF 通过文件头魔数判断内容是否为 PDF。
func IsPDF(data []byte) bool {
	return len(data) >= 5 && string(data[:5]) == "%PDF-"
}

// FileExists 检查文件是否存在。
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
