// Package services содержит уведомитель резервного копирования:
// после критических мутаций (создание пользователя, выдача премиума,
// привязка сессии, начисление рекламных загрузок) публикуется событие
// для внешнего воркера. Публикация строго best-effort: ошибки
// логируются и проглатываются на месте вызова, мутацию они не блокируют.
package services

import (
	"time"

	"github.com/streadway/amqp"

	"github.com/wolfstream/account-store/internal/lib/rabbitmq"
	"github.com/wolfstream/account-store/internal/metrics"
	"github.com/wolfstream/account-store/internal/models"
	rabbit "github.com/wolfstream/account-store/internal/rabbitmq"
)

// BackupService публикует события критических изменений в обмен backups.
type BackupService struct {
	ch *amqp.Channel
}

// NewBackupService создает новый экземпляр BackupService.
func NewBackupService(ch *amqp.Channel) *BackupService {
	return &BackupService{ch: ch}
}

// Notify публикует одно событие. Возвращенная ошибка предназначена
// только для предупреждающего лога вызывающей стороны.
func (s *BackupService) Notify(event string, userID int64) error {
	err := rabbitmq.PublishMessage(s.ch, rabbit.BackupExchange, rabbit.BackupRoutingKey, models.BackupEvent{
		Event:      event,
		UserID:     userID,
		OccurredAt: time.Now(),
	})
	if err != nil {
		metrics.BackupPublishFailures.Inc()
		return err
	}
	return nil
}
