package iocli

//go:generate moq -out io_mock.go . IO

// IO ввод-вывод команд клиента
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	// ReadInput читает строку; приглашение печатается только в терминале.
	// Конец ввода возвращает io.EOF.
	ReadInput(prompt string) (string, error)
	IsTerminal() bool
	Write(p []byte) (n int, err error)
}
