package mq

import "errors"

var (
	// ErrNoURL — не задан URL RabbitMQ.
	ErrNoURL = errors.New("rabbitmq url is empty")

	// ErrNoChannel — нет открытого AMQP канала.
	ErrNoChannel = errors.New("no channel available")

	// ErrPoisonMessage — сообщение нельзя обработать никогда (битый JSON, неверный тип).
	// Обработчик, вернувший эту ошибку, отправляет сообщение в DLQ без повтора.
	ErrPoisonMessage = errors.New("poison message")

	// ErrReplyTimeout — ответ на RPC-запрос не пришёл вовремя.
	ErrReplyTimeout = errors.New("reply timeout")

	// ErrReplyConsumerClosed — consumer reply-очереди закрыт.
	ErrReplyConsumerClosed = errors.New("reply consumer closed")

	// ErrRPCNotStarted — RPCClient.Call до Start.
	ErrRPCNotStarted = errors.New("rpc client not started")
)
