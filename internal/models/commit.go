package models

import "time"

// Commit пакет операций документа в журнале relay.
// Операции хранятся как есть, в проводной JSON-кодировке: relay их не интерпретирует.
type Commit struct {
	CreatedAt  time.Time `json:"created_at"` // CreatedAt время приема пакета relay
	Document   string    `json:"document"`   // Document имя документа
	Author     string    `json:"author"`     // Author имя пира, опубликовавшего пакет
	Version    string    `json:"version"`    // Version UUID пакета, одинаковый при повторных отправках
	Digest     string    `json:"digest"`     // Digest BLAKE2b-256 операций (hex)
	Operations []byte    `json:"operations"` // Operations JSON-массив операций
	Seq        int64     `json:"seq"`        // Seq позиция в журнале, назначается при записи
	OpCount    int       `json:"op_count"`   // OpCount количество операций в пакете
}

// SameBatch сообщает, описывают ли две записи один и тот же пакет.
// Пакет считается тем же при совпадении документа и либо версии, либо digest.
func (c *Commit) SameBatch(other *Commit) bool {
	if c.Document != other.Document {
		return false
	}
	return c.Version == other.Version || c.Digest == other.Digest
}

// Clone создает глубокую копию записи
func (c *Commit) Clone() *Commit {
	ops := make([]byte, len(c.Operations))
	copy(ops, c.Operations)

	clone := *c
	clone.Operations = ops
	return &clone
}

// Replica локальное состояние пира для одного документа на клиенте.
// Clock хранит верхнюю границу выданных часов: после перезапуска пир
// продолжает с нее и никогда не выдает идентификатор повторно.
type Replica struct {
	UpdatedAt time.Time `json:"updated_at"`
	Document  string    `json:"document"`
	Peer      string    `json:"peer"`
	Clock     uint64    `json:"clock"`
}
