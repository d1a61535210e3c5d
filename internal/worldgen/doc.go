// Package worldgen — клиент удалённой генерации 3D сцен из изображений.
//
// Собирает изображения из файла или директории и отправляет их по одному
// в удалённую GPU-функцию. Каждое задание ждёт свой ответ: следующее
// изображение отправляется только после ответа на предыдущее.
package worldgen
