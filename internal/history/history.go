// Package history keeps a bounded recent-exchange buffer so the markdown
// runner can give the LLM conversational context without replaying an
// unbounded transcript.
package history

// History is a fixed-capacity ring of recent player/narrator exchanges for
// a single (player, experience) conversation.
type History struct {
	exchanges []string
	maxSize   int
}

// New returns a History that keeps at most maxSize recent exchanges.
func New(maxSize int) *History {
	if maxSize <= 0 {
		maxSize = 10
	}
	return &History{exchanges: make([]string, 0, maxSize), maxSize: maxSize}
}

func (h *History) AddPlayerAction(input string) {
	h.add("Player: " + input)
}

func (h *History) AddNarratorResponse(response string) {
	h.add("Narrator: " + response)
}

func (h *History) AddError(err error) {
	h.add("Error: " + err.Error())
}

func (h *History) add(entry string) {
	h.exchanges = append(h.exchanges, entry)
	if len(h.exchanges) > h.maxSize {
		h.exchanges = h.exchanges[len(h.exchanges)-h.maxSize:]
	}
}

// Entries returns a defensive copy of the buffered exchanges, oldest first.
func (h *History) Entries() []string {
	out := make([]string, len(h.exchanges))
	copy(out, h.exchanges)
	return out
}

// BuildContext renders the buffered exchanges as a plain-text block to
// append to a markdown command's user prompt.
func (h *History) BuildContext() string {
	if len(h.exchanges) == 0 {
		return ""
	}
	out := "RECENT CONVERSATION:\n"
	for _, exchange := range h.exchanges {
		out += exchange + "\n"
	}
	return out
}
