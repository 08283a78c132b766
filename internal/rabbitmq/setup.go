// Package rabbitmq настраивает подключение к брокеру и топологию
// обмена backups, в который публикуются события критических изменений.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// BackupExchange — обмен, слушаемый внешним воркером резервного копирования.
const BackupExchange = "backups"

// BackupQueue и BackupRoutingKey — очередь и ключ маршрутизации событий.
const (
	BackupQueue      = "backups.critical"
	BackupRoutingKey = "critical"
)

// Connect подключается к RabbitMQ с повторами.
func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	for i := 0; i < retries; i++ {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}

// SetupChannel открывает канал и объявляет обмен и очередь событий
// резервного копирования.
func SetupChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		BackupExchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = ch.QueueDeclare(
		BackupQueue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, BackupQueue, err)
	}

	err = ch.QueueBind(
		BackupQueue,
		BackupRoutingKey,
		BackupExchange,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to bind queue %s: %w", op, BackupQueue, err)
	}

	return ch, nil
}
