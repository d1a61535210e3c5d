package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeWorldgen Exchange = "meshforge.worldgen"
	ExchangeDLQ      Exchange = "meshforge.dlq"

	// ExchangeDefault — безымянный обменник RabbitMQ, маршрутизирует по имени очереди.
	// Через него идут ответы в reply-очереди.
	ExchangeDefault Exchange = ""
)

// Queues — имена очередей.
const (
	QueueWorldgenJobs Queue = "worldgen.jobs"
	QueueDLQWorldgen  Queue = "dlq.worldgen"
)

// Routing keys.
const (
	RoutingKeyJob         RoutingKey = "job"
	RoutingKeyDLQWorldgen RoutingKey = "worldgen"
)

// SetupTopology объявляет обменники, очереди и привязки.
// Операции идемпотентны: вызывается и клиентом, и GPU worker'ом.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	for _, ex := range []Exchange{ExchangeWorldgen, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(ex), // name
			"direct",   // type
			true,       // durable
			false,      // auto-deleted
			false,      // internal
			false,      // no-wait
			nil,        // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// worldgen.jobs — с DLQ (битые сообщения уходят в dlq.worldgen)
		{QueueWorldgenJobs, amqp.Table{
			"x-dead-letter-exchange":    string(ExchangeDLQ),
			"x-dead-letter-routing-key": string(RoutingKeyDLQWorldgen),
		}},

		// dlq.worldgen — сама DLQ очередь
		{QueueDLQWorldgen, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueWorldgenJobs, RoutingKeyJob, ExchangeWorldgen},
		{QueueDLQWorldgen, RoutingKeyDLQWorldgen, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Meshforge RabbitMQ Topology:

    meshforge.worldgen (direct)
    └── worldgen.jobs [routing: job]
            Consumer: meshforge-gpu-worker
            DLQ: dlq.worldgen

    (default exchange)
    └── amq.gen-* [exclusive reply queue per client]
            Consumer: meshforge worldgen submit

    meshforge.dlq (direct)
    └── dlq.worldgen [routing: worldgen]
            Manual processing
  `
}
