// ABOUTME: Attachment image collection for chat messages
// ABOUTME: Downloads image attachments with a hard size cap

package discord

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/akikohatsune/neru/internal/llm"
)

// collectImages downloads every image attachment on a message. Non-image
// attachments are skipped; an image over the size cap is a hard error so
// the user learns why the bot ignored it.
func (b *Bot) collectImages(attachments []*discordgo.MessageAttachment) ([]llm.Image, error) {
	var images []llm.Image
	for _, att := range attachments {
		mimeType := strings.ToLower(att.ContentType)
		if mimeType == "" {
			mimeType = strings.ToLower(mime.TypeByExtension(filepath.Ext(att.Filename)))
		}
		if idx := strings.Index(mimeType, ";"); idx >= 0 {
			mimeType = strings.TrimSpace(mimeType[:idx])
		}
		if !strings.HasPrefix(mimeType, "image/") {
			continue
		}
		if int64(att.Size) > b.imageMaxBytes {
			return nil, fmt.Errorf("image %q exceeds the %d byte limit", att.Filename, b.imageMaxBytes)
		}

		data, err := b.downloadAttachment(att.URL)
		if err != nil {
			return nil, fmt.Errorf("downloading %q: %w", att.Filename, err)
		}
		images = append(images, llm.Image{MIMEType: mimeType, Data: data})
	}
	return images, nil
}

func (b *Bot) downloadAttachment(url string) ([]byte, error) {
	resp, err := b.httpClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// The reported size is re-checked on the wire; attachments can lie.
	data, err := io.ReadAll(io.LimitReader(resp.Body, b.imageMaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > b.imageMaxBytes {
		return nil, fmt.Errorf("attachment body exceeds the %d byte limit", b.imageMaxBytes)
	}
	return data, nil
}
