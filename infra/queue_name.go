package infra

// QueueName 定義 RabbitMQ 隊列名稱的枚舉類型
type QueueName string

const (
	// QueueNameCoordAnnouncements 協調層 sidecar 發布的節點、relay 公告
	QueueNameCoordAnnouncements QueueName = "ipfs_coord_announcements"

	// QueueNameConnectRequests 要求協調層連線到指定節點（RPC）
	QueueNameConnectRequests QueueName = "ipfs_connect_requests"
)

// String 實現 Stringer 接口，返回隊列名稱字符串
func (qn QueueName) String() string {
	return string(qn)
}

// GetAllQueueNames 返回所有定義的隊列名稱
func GetAllQueueNames() []QueueName {
	return []QueueName{
		QueueNameCoordAnnouncements,
		QueueNameConnectRequests,
	}
}
