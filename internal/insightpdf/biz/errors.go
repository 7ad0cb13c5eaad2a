package biz

import "errors"

var (
	// ErrDocumentNotFound 文档/会话不存在。
	ErrDocumentNotFound = errors.New("document not found")
	// ErrNotPDF 上传内容不是 PDF 文件。
	ErrNotPDF = errors.New("uploaded file is not a PDF")
)
