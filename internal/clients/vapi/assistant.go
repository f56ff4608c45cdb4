package vapi

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const (
	defaultAssistantModel = "gpt-4"
	defaultVoiceProvider  = "playht"
	defaultVoiceID        = "jennifer"
)

// ScriptQuestion is one question as the call agent sees it.
type ScriptQuestion struct {
	ID   string
	Text string
}

type ModelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AssistantModel struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Messages []ModelMessage `json:"messages"`
}

type AssistantVoice struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

// Assistant is the transient assistant definition sent with each call.
type Assistant struct {
	Name            string         `json:"name"`
	Model           AssistantModel `json:"model"`
	Voice           AssistantVoice `json:"voice"`
	ServerURL       string         `json:"serverUrl,omitempty"`
	ServerURLSecret string         `json:"serverUrlSecret,omitempty"`
}

// SystemPrompt returns the first system message, or "".
func (a Assistant) SystemPrompt() string {
	for _, m := range a.Model.Messages {
		if m.Role == "system" {
			return m.Content
		}
	}
	return ""
}

// BuildAssistant renders the call script for a form. Output depends only on
// its inputs so the same form always yields the same script.
func BuildAssistant(patientName, doctorName, formTitle string, questions []ScriptQuestion, callbackURL string) Assistant {
	return Assistant{
		Name: "Form: " + formTitle,
		Model: AssistantModel{
			Provider: "openai",
			Model:    defaultAssistantModel,
			Messages: []ModelMessage{{Role: "system", Content: renderScript(patientName, doctorName, formTitle, questions)}},
		},
		Voice:     AssistantVoice{Provider: defaultVoiceProvider, VoiceID: defaultVoiceID},
		ServerURL: callbackURL,
	}
}

// withConfig applies deployment overrides for model, voice and webhook secret.
func (a Assistant) withConfig(cfg Config) Assistant {
	a.Model.Model = lo.Ternary(strings.TrimSpace(cfg.AssistantModel) != "", cfg.AssistantModel, a.Model.Model)
	a.Voice.Provider = lo.Ternary(strings.TrimSpace(cfg.VoiceProvider) != "", cfg.VoiceProvider, a.Voice.Provider)
	a.Voice.VoiceID = lo.Ternary(strings.TrimSpace(cfg.VoiceID) != "", cfg.VoiceID, a.Voice.VoiceID)
	if a.ServerURL != "" && a.ServerURLSecret == "" {
		a.ServerURLSecret = cfg.ServerURLSecret
	}
	return a
}

func renderScript(patientName, doctorName, formTitle string, questions []ScriptQuestion) string {
	office := "your doctor's office"
	if d := strings.TrimSpace(doctorName); d != "" {
		office = fmt.Sprintf("Dr. %s's office", d)
	}

	numbered := lo.Map(questions, func(q ScriptQuestion, i int) string {
		return fmt.Sprintf("%d. %s", i+1, q.Text)
	})
	withIDs := lo.Map(questions, func(q ScriptQuestion, _ int) string {
		return fmt.Sprintf("Question ID: %s\nQuestion: %s", q.ID, q.Text)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "You are a friendly medical assistant calling %s to collect health information.\n\n", patientName)
	b.WriteString("Your task:\n")
	fmt.Fprintf(&b, "1. Introduce yourself: \"Hi %s, this is a health assessment call from %s regarding the %s.\"\n", patientName, office, formTitle)
	b.WriteString("2. Ask each question one at a time\n")
	b.WriteString("3. Listen carefully to their answers\n")
	b.WriteString("4. Confirm each answer before moving to the next question\n")
	b.WriteString("5. Thank them at the end\n\n")
	b.WriteString("Questions to ask:\n")
	b.WriteString(strings.Join(numbered, "\n"))
	b.WriteString("\n\nGuidelines:\n")
	b.WriteString("- Be warm and professional\n")
	b.WriteString("- Speak clearly and at a moderate pace\n")
	b.WriteString("- If they don't understand, rephrase the question\n")
	b.WriteString("- If they ask to reschedule, politely let them know they can fill out the form online instead\n")
	b.WriteString("- Keep responses brief and natural\n\n")
	b.WriteString("After collecting all answers, say: \"Thank you for your time! Your responses have been recorded and your doctor will review them. Have a great day!\"\n\n")
	b.WriteString("IMPORTANT: At the end of the call, you MUST send a server message with the collected answers using this exact format:\n")
	b.WriteString("{\n  \"questions\": [\n    ")
	b.WriteString(strings.Join(withIDs, "\n\n"))
	b.WriteString("\n  ],\n")
	b.WriteString(`  "instruction": "After collecting all answers, send them to the server in JSON format with this structure: {\"answers\": [{\"question_id\": \"<question-id>\", \"answer_text\": \"<patient-response>\"}]}"`)
	b.WriteString("\n}")
	return b.String()
}
