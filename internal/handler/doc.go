// Package handler 按调用方划分 HTTP 处理器：vendor 为商家自助接口，admin 为财务与运营接口
package handler
