package block

import "errors"

// ErrInvalidConfiguration возвращается при некорректной конфигурации:
// битая таблица блоков, неположительная дальность прорисовки и т.п.
// Ошибка фатальна при старте и не повторяется.
var ErrInvalidConfiguration = errors.New("invalid configuration")
