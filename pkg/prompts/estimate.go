// Package prompts builds the system and user prompts sent to the model for
// estimate reports and chat replies. Prompts are in Russian, matching the
// catalog and the users.
package prompts

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-estimator/pkg/models"
)

// historyWindow is how many trailing history messages the chat-only prompt carries.
const historyWindow = 5

// ReportSystemPrompt instructs the model to turn estimate data into a report.
const ReportSystemPrompt = "Ты помощник-аналитик. Ты получаешь структурированные данные о найденных " +
	"позициях оборудования и расчете времени сборки. Составь ясный, дружелюбный отчет для пользователя.\n\n" +
	"Обязательные элементы отчета:\n" +
	"1. Краткая сводка: сколько позиций найдено, общее ориентировочное время.\n" +
	"2. Детали по проектам и шкафам маркированным списком.\n" +
	"3. Предупреждение о ненайденных позициях, если они есть.\n" +
	"4. Указание предположений, если применялось нечеткое сопоставление.\n\n" +
	"Используй только предоставленные данные. Будь лаконичен."

// ChatSystemPrompt sets up the interactive assistant.
const ChatSystemPrompt = "Ты ассистент для интерактивного чата по расчету времени сборки оборудования. " +
	"Отвечай понятно и структурированно на русском языке. " +
	"Всегда начинай с общего времени, затем дай разбивку по шкафам и проектам. " +
	"Используй данные из результатов расчета. Будь конкретным."

// reportPayload is the data block embedded in the report prompt.
type reportPayload struct {
	FoundItems         []models.MatchResult `json:"found_items"`
	NotFoundItems      []string             `json:"not_found_items"`
	TotalTimeByCabinet map[string]int       `json:"total_time_by_cabinet"`
	TotalTimeByProject map[string]int       `json:"total_time_by_project"`
}

// BuildReportPrompt creates the user prompt for the estimate report.
// The outcome is embedded as JSON so the model sees exact numbers.
func BuildReportPrompt(outcome *models.EstimateOutcome) (string, error) {
	payload := reportPayload{
		FoundItems:         outcome.Found,
		NotFoundItems:      outcome.NotFound,
		TotalTimeByCabinet: outcome.TotalByCabinet,
		TotalTimeByProject: outcome.TotalByProject,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report payload: %w", err)
	}

	var prompt strings.Builder
	prompt.WriteString("Вот данные расчета:\n")
	prompt.Write(data)
	prompt.WriteString("\n\nСоставь отчет.")
	return prompt.String(), nil
}

// BuildChatPrompt creates the user prompt for a chat reply that explains an
// estimate. Totals are precomputed so the model does not have to add numbers.
func BuildChatPrompt(message string, outcome *models.EstimateOutcome) string {
	total := outcome.TotalMinutes()

	var prompt strings.Builder
	prompt.WriteString(fmt.Sprintf("Пользователь написал: %s\n\n", message))
	prompt.WriteString("Результаты расчета времени сборки:\n")
	prompt.WriteString(fmt.Sprintf("Найдено позиций: %d\n", len(outcome.Found)))
	prompt.WriteString(fmt.Sprintf("Общее время: %d минут (%s)\n\n", total, FormatDuration(total)))

	prompt.WriteString("Время по шкафам:\n")
	writeTotals(&prompt, "Шкаф", outcome.TotalByCabinet)
	prompt.WriteString("\nВремя по проектам:\n")
	writeTotals(&prompt, "Проект", outcome.TotalByProject)

	notFound := "нет"
	if len(outcome.NotFound) > 0 {
		notFound = strings.Join(outcome.NotFound, ", ")
	}
	prompt.WriteString(fmt.Sprintf("\nНенайденные позиции: %s\n\n", notFound))
	prompt.WriteString("Сформируй понятный ответ на русском языке. " +
		"Начни с общего времени, затем дай разбивку по шкафам и проектам.")
	return prompt.String()
}

// BuildChatOnlyPrompt creates the user prompt when no estimate was run.
// Only the last few user and assistant messages of history are included.
func BuildChatOnlyPrompt(message string, history []models.ChatMessage) string {
	var lines []string
	start := max(0, len(history)-historyWindow)
	for _, msg := range history[start:] {
		switch msg.Role {
		case models.ChatRoleUser:
			lines = append(lines, "Пользователь: "+msg.Content)
		case models.ChatRoleAssistant:
			lines = append(lines, "Ассистент: "+msg.Content)
		}
	}

	var prompt strings.Builder
	prompt.WriteString(fmt.Sprintf("Пользователь написал: %s\n\n", message))
	if len(lines) > 0 {
		prompt.WriteString("История разговора:\n")
		prompt.WriteString(strings.Join(lines, "\n"))
		prompt.WriteString("\n\n")
	}
	prompt.WriteString("Ответь как ассистент по расчету времени сборки оборудования. " +
		"Будь кратким и полезным. Если пользователь спрашивает о расчете, " +
		"напомни, что нужно отправить список позиций.")
	return prompt.String()
}

// FormatDuration renders minutes as "~H ч M мин".
func FormatDuration(minutes int) string {
	return fmt.Sprintf("~%d ч %d мин", minutes/60, minutes%60)
}

// writeTotals writes one line per key in sorted order, or "- нет" when empty.
func writeTotals(b *strings.Builder, label string, totals map[string]int) {
	if len(totals) == 0 {
		b.WriteString("- нет\n")
		return
	}
	keys := make([]string, 0, len(totals))
	for k := range totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("- %s %q: %d минут\n", label, k, totals[k]))
	}
}

// BuildSummary renders the estimate as plain text for replies produced
// without the model.
func BuildSummary(outcome *models.EstimateOutcome) string {
	total := outcome.TotalMinutes()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Общее время: %d минут (%s)\n", total, FormatDuration(total)))
	b.WriteString(fmt.Sprintf("Найдено позиций: %d\n", len(outcome.Found)))
	b.WriteString("\nПо шкафам:\n")
	writeTotals(&b, "Шкаф", outcome.TotalByCabinet)
	b.WriteString("\nПо проектам:\n")
	writeTotals(&b, "Проект", outcome.TotalByProject)
	if len(outcome.NotFound) > 0 {
		b.WriteString(fmt.Sprintf("\nНе найдено: %s\n", strings.Join(outcome.NotFound, ", ")))
	}
	return strings.TrimSuffix(b.String(), "\n")
}
