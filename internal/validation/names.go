package validation

import (
	"fmt"
	"regexp"
)

// NamePattern определяет допустимый формат имен документов и пиров
// Латинские буквы, цифры, точка, дефис и нижнее подчеркивание
// Длина: 1-64 символа
var NamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,64}$`)

// MaxNameLen максимальная длина имени
const MaxNameLen = 64

// ValidateDocument проверяет имя документа.
// Имя становится сегментом URL и суффиксом канала Redis.
func ValidateDocument(document string) error {
	return validateName("document", document)
}

// ValidatePeer проверяет имя пира, выбранное пользователем.
// Двоеточие запрещено: оно входит в разделитель идентификатора.
func ValidatePeer(peer string) error {
	return validateName("peer", peer)
}

func validateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s name cannot be empty", kind)
	}

	if len(name) > MaxNameLen {
		return fmt.Errorf("%s name must not exceed %d characters", kind, MaxNameLen)
	}

	if !NamePattern.MatchString(name) {
		return fmt.Errorf("%s name can only contain letters, numbers, '.', '-' and '_'", kind)
	}

	return nil
}
