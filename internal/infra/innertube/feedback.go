package innertube

import (
	"context"

	"github.com/cockroachdb/errors"
)

// MaxFeedbackTokens is the largest number of tokens accepted by one feedback call.
const MaxFeedbackTokens = 20

// Feedback submits library feedback tokens.
func (c *Client) Feedback(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) > MaxFeedbackTokens {
		return errors.Newf("feedback accepts at most %d tokens, got %d", MaxFeedbackTokens, len(tokens))
	}
	if err := c.post(ctx, "feedback", nil, WebRemix, map[string]any{"feedbackTokens": tokens}, nil); err != nil {
		return errors.Wrap(err, "failed to send feedback")
	}
	return nil
}

// LikeVideo sets or clears the like rating of a video.
func (c *Client) LikeVideo(ctx context.Context, videoID string, liked bool) error {
	endpoint := "like/like"
	if !liked {
		endpoint = "like/removelike"
	}
	body := map[string]any{"target": map[string]any{"videoId": videoID}}
	if err := c.post(ctx, endpoint, nil, WebRemix, body, nil); err != nil {
		return errors.Wrapf(err, "failed to rate %s", videoID)
	}
	return nil
}
