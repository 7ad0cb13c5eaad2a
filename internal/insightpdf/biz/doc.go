// Package biz 提供 InsightPDF 服务的业务逻辑。
//
// 核心流程：上传的 PDF 按内容哈希建立会话，会话内构建摘要引擎和向量引擎，
// 路由引擎通过 LLM 选择器为每个问题挑选合适的引擎生成答案。
package biz
