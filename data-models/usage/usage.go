package usage

import "ipfs-service-provider/model"

// RestSummaryResponse 最近保留期間內的 REST 呼叫總數
type RestSummaryResponse struct {
	Body struct {
		Status int `json:"status" example:"1024" doc:"REST 呼叫總數"`
	}
}

// TopIPsResponse 呼叫次數最多的來源 IP
type TopIPsResponse struct {
	Body struct {
		IPs []model.IPCount `json:"ips" doc:"依呼叫次數遞減排序"`
	}
}

// TopEndpointsResponse 呼叫次數最多的端點
type TopEndpointsResponse struct {
	Body struct {
		Endpoints []model.EndpointCount `json:"endpoints" doc:"依呼叫次數遞減排序"`
	}
}
