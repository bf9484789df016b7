package controller

import (
	"context"
	"ipfs-service-provider/data-models/usage"
	"ipfs-service-provider/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

type UsageController struct {
	logger       zerolog.Logger
	usageService *service.UsageService
	topLimit     int
}

func NewUsageController(logger zerolog.Logger, usageService *service.UsageService, topLimit int) *UsageController {
	return &UsageController{
		logger:       logger.With().Str("module", "usage_controller").Logger(),
		usageService: usageService,
		topLimit:     topLimit,
	}
}

func (c *UsageController) RegisterRoutes(api huma.API) {
	// REST 呼叫總數
	huma.Register(api, huma.Operation{
		OperationID: "get-usage-summary",
		Method:      "GET",
		Path:        "/usage",
		Summary:     "獲取最近 24 小時 REST API 呼叫總數",
		Tags:        []string{"Usage"},
	}, func(ctx context.Context, input *struct{}) (*usage.RestSummaryResponse, error) {
		resp := &usage.RestSummaryResponse{}
		resp.Body.Status = c.usageService.GetRestSummary()
		return resp, nil
	})

	// 呼叫次數最多的來源 IP
	huma.Register(api, huma.Operation{
		OperationID: "get-usage-top-ips",
		Method:      "GET",
		Path:        "/usage/ips",
		Summary:     "獲取呼叫次數最多的來源 IP",
		Tags:        []string{"Usage"},
	}, func(ctx context.Context, input *struct{}) (*usage.TopIPsResponse, error) {
		ips, err := c.usageService.GetTopIPs(c.topLimit)
		if err != nil {
			c.logger.Error().Err(err).Msg("獲取來源 IP 統計失敗")
			return nil, handleError(err)
		}

		resp := &usage.TopIPsResponse{}
		resp.Body.IPs = ips
		return resp, nil
	})

	// 呼叫次數最多的端點
	huma.Register(api, huma.Operation{
		OperationID: "get-usage-top-endpoints",
		Method:      "GET",
		Path:        "/usage/endpoints",
		Summary:     "獲取呼叫次數最多的端點",
		Tags:        []string{"Usage"},
	}, func(ctx context.Context, input *struct{}) (*usage.TopEndpointsResponse, error) {
		endpoints, err := c.usageService.GetTopEndpoints(c.topLimit)
		if err != nil {
			c.logger.Error().Err(err).Msg("獲取端點統計失敗")
			return nil, handleError(err)
		}

		resp := &usage.TopEndpointsResponse{}
		resp.Body.Endpoints = endpoints
		return resp, nil
	})
}
