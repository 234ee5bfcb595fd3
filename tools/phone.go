package tools

import (
	"strings"
	"unicode"
)

// NormalizePhone mantém apenas dígitos e aceita de 8 a 15 dígitos sem zero
// à esquerda (formato aceito pela Z-API, sem '+'). Retorna "" se inválido.
func NormalizePhone(raw string) string {
	digits := onlyDigits(raw)
	if len(digits) < 8 || len(digits) > 15 || digits[0] == '0' {
		return ""
	}
	return digits
}

// NormalizePhoneE164BR normaliza um telefone para E.164 ("+55...").
//
// Heurística atual (Brasil):
// - remove tudo que não é dígito
// - se vier com 10/11 dígitos, assume BR e prefixa 55
// - se já vier com DDI (>= 12 dígitos), mantém
func NormalizePhoneE164BR(raw string) string {
	phone := strings.TrimLeft(onlyDigits(raw), "0")

	// BR comum (DDD+numero): 10 ou 11 dígitos -> prefixa 55
	if len(phone) == 10 || len(phone) == 11 {
		phone = "55" + phone
	}

	if len(phone) < 12 || len(phone) > 15 {
		return ""
	}
	return "+" + phone
}

// MaskPhone esconde o miolo do telefone para logs.
func MaskPhone(phone string) string {
	if len(phone) <= 6 {
		return strings.Repeat("*", len(phone))
	}
	return phone[:4] + strings.Repeat("*", len(phone)-6) + phone[len(phone)-2:]
}

func onlyDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.TrimSpace(raw) {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
