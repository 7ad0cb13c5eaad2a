// Package store 提供 InsightPDF 服务的向量存储层。
//
// 该包定义了向量存储的接口抽象和具体实现，
// 支持文档块的存储、按文档过滤检索、删除和统计功能。
package store
