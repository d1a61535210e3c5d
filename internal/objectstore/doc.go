// Package objectstore выгружает артефакты в MinIO / S3.
//
// GPU worker выгружает сгенерированные сцены, pipeline может выгружать
// директории завершённых run (RunArchiver).
package objectstore
