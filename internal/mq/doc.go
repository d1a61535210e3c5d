// Package mq — транспорт заданий worldgen поверх RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация заданий и ответов
//   - consumer.go   — потребление заданий (GPU worker)
//   - rpc.go        — клиент запрос/ответ через exclusive reply-очередь
//
// Типы сообщений:
//   - worldgen.job     — изображение + параметры генерации
//   - worldgen.result  — имя артефакта или ошибка
//
// Ответ связывается с запросом по correlation id (= ID задания).
//
// Сообщение, на котором обработчик упал, возвращается в очередь один раз;
// повторная неудача и битые сообщения уходят в dlq.worldgen (см. Settle).
package mq
