package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ServiceType 定義服務類型
type ServiceType string

const (
	ServiceTypeUsage ServiceType = "usage"
	ServiceTypeIPFS  ServiceType = "ipfs"
)

// OperationType 定義操作類型
type OperationType string

const (
	OperationCleanUsage  OperationType = "clean_usage"
	OperationBackupUsage OperationType = "backup_usage"
	OperationLoadUsage   OperationType = "load_usage"
	OperationConnectPeer OperationType = "connect_peer"
	OperationAnnounce    OperationType = "announcement"
)

// OperationStatus 定義操作狀態
type OperationStatus string

const (
	StatusSuccess OperationStatus = "success"
	StatusError   OperationStatus = "error"
)

// OperationSource 定義操作來源
type OperationSource string

const (
	SourceTimer    OperationSource = "timer"
	SourceStartup  OperationSource = "startup"
	SourceShutdown OperationSource = "shutdown"
	SourceAPI      OperationSource = "api"
	SourceQueue    OperationSource = "queue"
)

// StatusFromError 依 err 判斷操作狀態
func StatusFromError(err error) OperationStatus {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

var (
	serviceOperationsTotal   *prometheus.CounterVec
	serviceOperationDuration *prometheus.HistogramVec
	usageEventsInMemory      prometheus.Gauge
	usageEventsRecorded      *prometheus.CounterVec
	usageEventsPruned        prometheus.Counter
	ipfsConnectedPeers       prometheus.Gauge
	ipfsKnownRelays          prometheus.Gauge
	ipfsAnnouncementsTotal   *prometheus.CounterVec
)

// InitServiceMetrics 初始化 Service 層 metrics
func InitServiceMetrics(registry *prometheus.Registry) error {
	serviceOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "service_operations_total",
			Help: "Total number of service layer operations",
		},
		[]string{"service", "operation", "status", "source"},
	)

	serviceOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "service_operation_duration_seconds",
			Help:    "Duration of service layer operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "operation", "source"},
	)

	usageEventsInMemory = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "usage_events_in_memory",
		Help: "Number of REST usage events currently held in memory",
	})

	usageEventsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_events_recorded_total",
			Help: "Total number of REST calls seen by the usage middleware",
		},
		[]string{"result"},
	)

	usageEventsPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "usage_events_pruned_total",
		Help: "Total number of usage events removed by the retention sweep",
	})

	ipfsConnectedPeers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ipfs_connected_peers",
		Help: "Number of IPFS peers this node is connected to, as last announced",
	})

	ipfsKnownRelays = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ipfs_known_relays",
		Help: "Number of v2 Circuit Relays known to this node",
	})

	ipfsAnnouncementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ipfs_announcements_total",
			Help: "Total number of coordination announcements consumed",
		},
		[]string{"type", "status"},
	)

	collectors := []prometheus.Collector{
		serviceOperationsTotal,
		serviceOperationDuration,
		usageEventsInMemory,
		usageEventsRecorded,
		usageEventsPruned,
		ipfsConnectedPeers,
		ipfsKnownRelays,
		ipfsAnnouncementsTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}

	return nil
}

// RecordServiceOperation 記錄 Service 層操作 metrics
func RecordServiceOperation(service ServiceType, operation OperationType, status OperationStatus, source OperationSource, duration time.Duration) {
	if serviceOperationsTotal != nil && serviceOperationDuration != nil {
		serviceOperationsTotal.WithLabelValues(string(service), string(operation), string(status), string(source)).Inc()
		serviceOperationDuration.WithLabelValues(string(service), string(operation), string(source)).Observe(duration.Seconds())
	}
}

// RecordUsageOperation 專門記錄 usage 背景工作的便利函數
func RecordUsageOperation(operation OperationType, status OperationStatus, source OperationSource, duration time.Duration) {
	RecordServiceOperation(ServiceTypeUsage, operation, status, source, duration)
}

// SetUsageEventsInMemory 更新記憶體內 usage 紀錄數
func SetUsageEventsInMemory(n int) {
	if usageEventsInMemory != nil {
		usageEventsInMemory.Set(float64(n))
	}
}

// RecordUsageIngestion 記錄 middleware 的處理結果（recorded / failed / rejected）
func RecordUsageIngestion(result string) {
	if usageEventsRecorded != nil {
		usageEventsRecorded.WithLabelValues(result).Inc()
	}
}

// AddUsageEventsPruned 累加被清除的紀錄數
func AddUsageEventsPruned(n int) {
	if usageEventsPruned != nil && n > 0 {
		usageEventsPruned.Add(float64(n))
	}
}

// SetConnectedPeers 更新已連線節點數
func SetConnectedPeers(n int) {
	if ipfsConnectedPeers != nil {
		ipfsConnectedPeers.Set(float64(n))
	}
}

// SetKnownRelays 更新已知 relay 數
func SetKnownRelays(n int) {
	if ipfsKnownRelays != nil {
		ipfsKnownRelays.Set(float64(n))
	}
}

// RecordAnnouncement 記錄協調層公告處理結果
func RecordAnnouncement(announcementType string, status OperationStatus) {
	if ipfsAnnouncementsTotal != nil {
		ipfsAnnouncementsTotal.WithLabelValues(announcementType, string(status)).Inc()
	}
}
