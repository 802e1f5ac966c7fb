package services

// User-facing warnings and replies. The audience reads Russian.
const (
	WarningLLMDisabled    = "LLM отключен настройками"
	WarningLLMFailed      = "Не удалось получить ответ от языковой модели"
	WarningNamesRequired  = "Для режима estimate нужен список names. Отправьте позиции снова."
	WarningEstimateFailed = "Ошибка поиска или расчета. Попробуйте отправить данные еще раз."
	WarningNoSearch       = "Поиск не выполнялся, список наименований не передан."

	ReplyNamesRequired  = "Не получил список позиций. Отправьте корректный список и повторите запрос."
	ReplyEstimateFailed = "Произошла ошибка при расчете. Проверьте входные данные и отправьте повторно."
	ReplyLLMFailed      = "Не удалось сформировать ответ языковой модели."
	ReplyLLMDisabled    = "LLM отключен настройками."
	ReplyNeedNames      = "Отправьте список позиций, чтобы рассчитать время сборки."
)
