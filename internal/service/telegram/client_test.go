package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/open-builders/filmbank/internal/common/errors"
)

type recorded struct {
	path string
	form map[string]string
}

func fakeAPI(t *testing.T, reply func(method string) string) (*Client, *[]recorded) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{path: r.URL.Path, form: map[string]string{}}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			for k, v := range r.MultipartForm.Value {
				rec.form[k] = v[0]
			}
			if f, _, err := r.FormFile("document"); err == nil {
				b, _ := io.ReadAll(f)
				rec.form["document"] = string(b)
			}
		} else {
			assert.NoError(t, r.ParseForm())
			for k := range r.PostForm {
				rec.form[k] = r.PostForm.Get(k)
			}
		}
		mu.Lock()
		reqs = append(reqs, rec)
		mu.Unlock()
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		_, _ = io.WriteString(w, reply(method))
	}))
	t.Cleanup(srv.Close)
	return NewClient("TOKEN", srv.URL+"/", time.Second, zerolog.Nop()), &reqs
}

func TestSendMessage(t *testing.T) {
	c, reqs := fakeAPI(t, func(string) string {
		return `{"ok":true,"result":{"message_id":77,"chat":{"id":5,"type":"private"}}}`
	})

	msg, err := c.SendMessage(context.Background(), SendMessageParams{
		ChatID:      5,
		Text:        "<b>hi</b>",
		ParseMode:   ParseModeHTML,
		ReplyMarkup: InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{{Text: "x", CallbackData: "noop"}}}},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 77, msg.MessageID)

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, "/botTOKEN/sendMessage", got.path)
	assert.Equal(t, "5", got.form["chat_id"])
	assert.Equal(t, "HTML", got.form["parse_mode"])

	var markup InlineKeyboardMarkup
	require.NoError(t, json.Unmarshal([]byte(got.form["reply_markup"]), &markup))
	assert.Equal(t, "noop", markup.InlineKeyboard[0][0].CallbackData)
}

func TestAPIErrorIsPlatformIO(t *testing.T) {
	c, _ := fakeAPI(t, func(string) string {
		return `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`
	})
	err := c.PinChatMessage(context.Background(), 1, 2)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCodePlatformIO))
	assert.Contains(t, err.Error(), "chat not found")
}

func TestEditNotModifiedIsNotAnError(t *testing.T) {
	c, _ := fakeAPI(t, func(string) string {
		return `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`
	})
	assert.NoError(t, c.EditMessageText(context.Background(), 1, 2, "same", "", nil))
	assert.NoError(t, c.EditMessageReplyMarkup(context.Background(), 1, 2, nil))
}

func TestGetUpdatesRequestsChatMember(t *testing.T) {
	c, reqs := fakeAPI(t, func(string) string {
		return `{"ok":true,"result":[{"update_id":10,"chat_member":{"chat":{"id":-100,"type":"supergroup"},` +
			`"old_chat_member":{"status":"left","user":{"id":3,"first_name":"A"}},` +
			`"new_chat_member":{"status":"member","user":{"id":3,"first_name":"A"}}}}]}`
	})
	ups, err := c.GetUpdates(context.Background(), 9, 0)
	require.NoError(t, err)
	require.Len(t, ups, 1)
	require.NotNil(t, ups[0].ChatMember)
	assert.True(t, ups[0].ChatMember.NewChatMember.IsPresent())
	assert.False(t, ups[0].ChatMember.OldChatMember.IsPresent())
	assert.Contains(t, (*reqs)[0].form["allowed_updates"], "chat_member")
	assert.Equal(t, "9", (*reqs)[0].form["offset"])
}

func TestSendDocument(t *testing.T) {
	c, reqs := fakeAPI(t, func(string) string { return `{"ok":true,"result":{}}` })
	path := filepath.Join(t.TempDir(), "data_20240101_000000.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version":2}`), 0o600))

	require.NoError(t, c.SendDocument(context.Background(), -42, path, "backup"))
	got := (*reqs)[0]
	assert.Equal(t, "-42", got.form["chat_id"])
	assert.Equal(t, `{"version":2}`, got.form["document"])
}

func TestWholeTextLink(t *testing.T) {
	msg := &Message{
		Text:     "Night 🌙 Watch",
		Entities: []MessageEntity{{Type: "text_link", Offset: 0, Length: 14, URL: "https://example.org"}},
	}
	assert.Equal(t, "https://example.org", msg.WholeTextLink())

	partial := &Message{
		Text:     "Night Watch",
		Entities: []MessageEntity{{Type: "text_link", Offset: 0, Length: 5, URL: "https://example.org"}},
	}
	assert.Equal(t, "", partial.WholeTextLink())
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "Ann Lee", (&User{FirstName: "Ann", LastName: "Lee"}).FullName())
	assert.Equal(t, "Ann", (&User{FirstName: "Ann"}).FullName())
	var u *User
	assert.Equal(t, "", u.FullName())
}
