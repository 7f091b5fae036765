package telegram

import "context"

// Publisher posts plain-text announcements into a chat and manages pins.
type Publisher struct {
	client *Client
}

func NewPublisher(c *Client) *Publisher { return &Publisher{client: c} }

func (p *Publisher) SendText(ctx context.Context, chatID int64, text string) (int64, error) {
	msg, err := p.client.SendMessage(ctx, SendMessageParams{ChatID: chatID, Text: text})
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

func (p *Publisher) Pin(ctx context.Context, chatID, messageID int64) error {
	return p.client.PinChatMessage(ctx, chatID, messageID)
}

func (p *Publisher) Unpin(ctx context.Context, chatID, messageID int64) error {
	return p.client.UnpinChatMessage(ctx, chatID, messageID)
}
