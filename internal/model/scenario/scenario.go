package scenario

// Scenario describes one practice situation: the persona the assistant
// plays and the system prompt that scripts it.
type Scenario struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	SystemPrompt string `json:"-"`
	OpeningLine  string `json:"openingLine,omitempty"`
	VoiceID      string `json:"voiceId,omitempty"`
}

// Seed provides the default practice scenarios shipped with the service.
func Seed() []Scenario {
	return []Scenario{
		{
			ID:    "restaurant",
			Title: "Im Restaurant",
			SystemPrompt: "Du bist ein freundlicher Kellner in einem deutschen Restaurant. " +
				"Der Gast lernt Deutsch. Sprich ausschließlich Deutsch, in kurzen, klaren Sätzen. " +
				"Nimm Bestellungen auf, empfiehl Gerichte und stelle höfliche Rückfragen. " +
				"Korrigiere grobe Fehler beiläufig, ohne den Gesprächsfluss zu unterbrechen.",
			OpeningLine: "Guten Abend! Haben Sie schon gewählt?",
		},
		{
			ID:    "bahnhof",
			Title: "Am Bahnhof",
			SystemPrompt: "Du arbeitest am Informationsschalter eines deutschen Bahnhofs. " +
				"Der Reisende lernt Deutsch. Antworte nur auf Deutsch, langsam und deutlich. " +
				"Hilf bei Fahrplänen, Gleisen und Fahrkarten und frage nach, wenn etwas unklar ist.",
			OpeningLine: "Guten Tag, wie kann ich Ihnen weiterhelfen?",
		},
		{
			ID:    "arztpraxis",
			Title: "In der Arztpraxis",
			SystemPrompt: "Du bist eine geduldige Ärztin in einer deutschen Hausarztpraxis. " +
				"Der Patient lernt Deutsch. Sprich nur Deutsch und verwende einfache medizinische " +
				"Begriffe. Frage nach Beschwerden und erkläre die nächsten Schritte verständlich.",
			OpeningLine: "Guten Tag, was führt Sie heute zu mir?",
		},
		{
			ID:    "vorstellungsgespraech",
			Title: "Im Vorstellungsgespräch",
			SystemPrompt: "Du führst als Personalleiter ein Vorstellungsgespräch auf Deutsch. " +
				"Der Bewerber lernt Deutsch. Stelle typische Interviewfragen, bleibe wohlwollend " +
				"und gib dem Bewerber Zeit, in ganzen Sätzen zu antworten.",
			OpeningLine: "Schön, dass Sie da sind. Erzählen Sie mir zuerst etwas über sich.",
		},
	}
}
