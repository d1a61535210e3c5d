// Package gpuworker реализует удалённую GPU-функцию генерации сцен.
//
// Worker потребляет задания из очереди worldgen.jobs и для каждого:
//
//  1. Записывает изображение во временную директорию
//  2. Рендерит argv генератора ({{ .Inputs.image }}, {{ .Inputs.output }},
//     {{ .Inputs.prompt }}, {{ .Inputs.max_side }}, {{ .Inputs.mode }})
//  3. Запускает генератор через stage.Runner в заданном окружении
//  4. Выгружает результат через Uploader (MinIO или локальная директория)
//  5. Отвечает WorldgenResult в очередь reply-to с тем же correlation id
//
// Ошибки обработки не приводят к nack: клиент получает ответ с Error.
// В DLQ уходят только сообщения, которые нельзя разобрать.
package gpuworker
