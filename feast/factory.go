package feast

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// NewClient 统一的客户端创建函数，根据端点自动选择实现。
//
// 端点格式：
//   - HTTP: "http://localhost:6566" 或 "https://feast.internal"
//   - gRPC: "localhost:6565" 或 "grpc://localhost:6565"
//
// 示例：
//
//	client, err := feast.NewClient("http://localhost:6566", "music")
//	client, err := feast.NewClient("grpc://localhost:6565", "music")
func NewClient(endpoint, project string, opts ...ClientOption) (Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("feast endpoint is required")
	}
	config := newConfig(endpoint, project, opts)

	isHTTP := strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://")
	if isHTTP && !config.UseGRPC {
		return NewHTTPClient(endpoint, project, opts...)
	}

	host, port, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return NewGrpcClient(host, port, project, opts...)
}

// parseEndpoint 解析 gRPC 端点，返回 host 和 port（无端口时为 0）
func parseEndpoint(endpoint string) (string, int, error) {
	for _, prefix := range []string{"grpc://", "http://", "https://"} {
		endpoint = strings.TrimPrefix(endpoint, prefix)
	}
	endpoint = strings.TrimRight(endpoint, "/")

	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		// 无端口
		return endpoint, 0, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid feast port %q: %w", portStr, err)
	}
	return host, port, nil
}
