// Package metrics объявляет счетчики Prometheus для наблюдаемости ядра.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuotaRejections — отказы квоты по причинам.
	QuotaRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "account_store_quota_rejections_total",
		Help: "Download requests rejected by the quota engine.",
	}, []string{"reason"})

	// SweptAdSessions — рекламные сессии, удаленные чисткой.
	SweptAdSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "account_store_swept_ad_sessions_total",
		Help: "Expired ad sessions removed by the periodic sweep.",
	})

	// SweptVerificationCodes — коды подтверждения, удаленные чисткой.
	SweptVerificationCodes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "account_store_swept_verification_codes_total",
		Help: "Expired verification codes removed by the periodic sweep.",
	})

	// BackupPublishFailures — неудачные публикации событий резервного копирования.
	BackupPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "account_store_backup_publish_failures_total",
		Help: "Backup trigger publications that failed and were swallowed.",
	})
)
