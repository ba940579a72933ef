package models

// GiftHeader is the header row of the gift sheet
var GiftHeader = []string{"Timestamp", "Da", "A", "Messaggio"}

// GiftMessage is a message left for the hosts. Gift rows are only appended.
type GiftMessage struct {
	Timestamp string `json:"timestamp"`
	From      string `json:"from"`
	To        string `json:"to"`
	Message   string `json:"message"`
}

// Cells returns the message in gift sheet column order
func (m GiftMessage) Cells() []string {
	return []string{m.Timestamp, m.From, m.To, m.Message}
}
