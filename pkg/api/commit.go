package api

import "time"

// Commit опубликованный пакет операций одного пира, как его хранит и раздает relay.
type Commit struct {
	CreatedAt  time.Time   `json:"created_at"`
	Document   string      `json:"document"`
	Author     string      `json:"author"`  // имя пира-автора
	Version    string      `json:"version"` // UUID пакета, задается клиентом для идемпотентных повторов
	Digest     string      `json:"digest"`  // BLAKE2b-256 канонической кодировки операций
	Operations []Operation `json:"operations"`
	Seq        int64       `json:"seq"` // позиция в журнале relay, монотонно растет
}

// PushRequest запрос на публикацию пакета
type PushRequest struct {
	Author     string      `json:"author"`
	Version    string      `json:"version"`
	Operations []Operation `json:"operations"`
}

// PushResponse ответ на публикацию
type PushResponse struct {
	Digest    string `json:"digest"`
	Seq       int64  `json:"seq"`
	Duplicate bool   `json:"duplicate"` // пакет уже был принят ранее
}

// PullResponse пакеты документа после запрошенной позиции
type PullResponse struct {
	Commits []Commit `json:"commits"`
	LastSeq int64    `json:"last_seq"`
}

// StreamMessageCommit тип сообщения websocket-потока с новым пакетом
const StreamMessageCommit = "commit"

// StreamMessage сообщение websocket-потока документа
type StreamMessage struct {
	Commit *Commit `json:"commit,omitempty"`
	Type   string  `json:"type"`
}

// HealthResponse ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
