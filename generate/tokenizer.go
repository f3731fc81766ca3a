package generate

// Message is one turn of a chat-style prompt, passed through to the
// Tokenizer's template untouched.
type Message struct {
	Role    string
	Content string
}

// Tokenizer is the external collaborator that turns prompts into token
// ids and token ids back into text. No BPE implementation ships in this
// module; callers supply one (a llama.cpp-style vocab, a SentencePiece
// model, whatever matches the checkpoint).
type Tokenizer interface {
	// EncodeText tokenizes a raw prompt string.
	EncodeText(text string) ([]uint32, error)
	// EncodeChat renders messages through the model's chat template and
	// tokenizes the result, leaving an open assistant-role prefix.
	EncodeChat(messages []Message) ([]uint32, error)
	// Decode renders a single token id as the text fragment it contributes
	// to the output stream.
	Decode(id uint32) (string, error)
	// EOS returns the end-of-sequence token id.
	EOS() uint32
	// EndOfTurn returns the chat end-of-turn token id, and false if the
	// underlying vocabulary has no distinct one (EOS alone terminates).
	EndOfTurn() (uint32, bool)
}
