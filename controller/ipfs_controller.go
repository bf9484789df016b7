package controller

import (
	"context"
	"errors"
	"ipfs-service-provider/data-models/ipfs"
	"ipfs-service-provider/infra"
	"ipfs-service-provider/model"
	"ipfs-service-provider/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

type IPFSController struct {
	logger      zerolog.Logger
	ipfsService *service.IPFSService
}

func NewIPFSController(logger zerolog.Logger, ipfsService *service.IPFSService) *IPFSController {
	return &IPFSController{
		logger:      logger.With().Str("module", "ipfs_controller").Logger(),
		ipfsService: ipfsService,
	}
}

func (c *IPFSController) RegisterRoutes(api huma.API) {
	// 節點狀態
	huma.Register(api, huma.Operation{
		OperationID: "get-ipfs-status",
		Method:      "GET",
		Path:        "/ipfs",
		Summary:     "獲取 IPFS 節點狀態",
		Tags:        []string{"IPFS"},
	}, func(ctx context.Context, input *struct{}) (*ipfs.StatusResponse, error) {
		status, err := c.ipfsService.GetStatus(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("獲取節點狀態失敗")
			return nil, ipfsError(err)
		}

		resp := &ipfs.StatusResponse{}
		resp.Body.Status = status
		return resp, nil
	})

	// 已連線節點
	huma.Register(api, huma.Operation{
		OperationID: "get-ipfs-peers",
		Method:      "POST",
		Path:        "/ipfs/peers",
		Summary:     "獲取已連線的 IPFS 節點",
		Tags:        []string{"IPFS"},
	}, func(ctx context.Context, input *ipfs.GetPeersInput) (*ipfs.PeersResponse, error) {
		peers, err := c.ipfsService.GetPeers(ctx, input.Body.ShowAll)
		if err != nil {
			c.logger.Error().Err(err).Msg("獲取已連線節點失敗")
			return nil, ipfsError(err)
		}

		resp := &ipfs.PeersResponse{}
		resp.Body.Peers = peers
		return resp, nil
	})

	// Circuit Relay
	huma.Register(api, huma.Operation{
		OperationID: "get-ipfs-relays",
		Method:      "POST",
		Path:        "/ipfs/relays",
		Summary:     "獲取已知的 Circuit Relay",
		Tags:        []string{"IPFS"},
	}, func(ctx context.Context, input *struct{}) (*ipfs.RelaysResponse, error) {
		relays, err := c.ipfsService.GetRelays(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("獲取 relay 失敗")
			return nil, ipfsError(err)
		}

		resp := &ipfs.RelaysResponse{}
		resp.Body.Relays = relays
		return resp, nil
	})

	// 連線到指定節點
	huma.Register(api, huma.Operation{
		OperationID: "connect-ipfs-peer",
		Method:      "POST",
		Path:        "/ipfs/connect",
		Summary:     "連線到指定的 IPFS 節點",
		Tags:        []string{"IPFS"},
	}, func(ctx context.Context, input *ipfs.ConnectInput) (*ipfs.ConnectResponse, error) {
		result, err := c.ipfsService.Connect(ctx, model.ConnectRequest{
			Multiaddr:  input.Body.Multiaddr,
			GetDetails: input.Body.GetDetails,
		})
		if err != nil {
			c.logger.Error().Err(err).Str("multiaddr", input.Body.Multiaddr).Msg("連線到節點失敗")
			return nil, ipfsError(err)
		}

		return &ipfs.ConnectResponse{Body: result}, nil
	})

	// 本節點資訊
	huma.Register(api, huma.Operation{
		OperationID: "get-ipfs-this-node",
		Method:      "GET",
		Path:        "/ipfs/node",
		Summary:     "獲取本節點完整資訊",
		Tags:        []string{"IPFS"},
	}, func(ctx context.Context, input *struct{}) (*ipfs.ThisNodeResponse, error) {
		node, err := c.ipfsService.GetThisNode(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("獲取本節點資訊失敗")
			return nil, ipfsError(err)
		}

		resp := &ipfs.ThisNodeResponse{}
		resp.Body.ThisNode = node
		return resp, nil
	})
}

// ipfsError 協調層尚未就緒回傳 503，RPC 逾時回傳 504，其餘依 handleError
func ipfsError(err error) error {
	switch {
	case errors.Is(err, infra.ErrNodeNotAnnounced):
		return huma.Error503ServiceUnavailable("IPFS 節點尚未就緒", err)
	case errors.Is(err, infra.ErrConnectTimeout), errors.Is(err, context.DeadlineExceeded):
		return huma.Error504GatewayTimeout("等待協調層回覆逾時", err)
	case errors.Is(err, service.ErrConnectRateLimited):
		return huma.Error429TooManyRequests("連線請求過於頻繁", err)
	default:
		return handleError(err)
	}
}
