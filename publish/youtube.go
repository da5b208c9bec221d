// Package publish uploads finished videos to YouTube via the Data API v3.
// Credentials come from YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET and
// YOUTUBE_REFRESH_TOKEN.
package publish

import (
	"context"
	"fmt"
	"log"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// Video is the metadata attached to an upload.
type Video struct {
	Path        string
	Title       string
	Description string
	Tags        []string
	CategoryID  string
	Privacy     string // public, unlisted or private; default unlisted
}

// Uploader publishes videos to the authenticated channel.
type Uploader struct{}

func New() *Uploader { return &Uploader{} }

// Upload pushes the video and returns its id and watch URL.
func (u *Uploader) Upload(ctx context.Context, v Video) (string, string, error) {
	log.Println("[publish] Authenticating with YouTube API...")

	source, err := tokenSource(ctx)
	if err != nil {
		return "", "", fmt.Errorf("youtube auth: %w", err)
	}

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(oauth2.NewClient(ctx, source)))
	if err != nil {
		return "", "", fmt.Errorf("youtube service: %w", err)
	}

	privacy := v.Privacy
	if privacy == "" {
		privacy = "unlisted"
	}
	categoryID := v.CategoryID
	if categoryID == "" {
		categoryID = "24" // Entertainment
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       v.Title,
			Description: v.Description,
			Tags:        v.Tags,
			CategoryId:  categoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: privacy,
		},
	}

	f, err := os.Open(v.Path)
	if err != nil {
		return "", "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	if fi, statErr := f.Stat(); statErr == nil {
		log.Printf("[publish] Uploading %q (%.1f MB)", v.Title, float64(fi.Size())/1024/1024)
	}

	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(f).Do()
	if err != nil {
		return "", "", fmt.Errorf("youtube upload: %w", err)
	}

	url := "https://www.youtube.com/watch?v=" + uploaded.Id
	log.Printf("[publish] Uploaded: %s", url)
	return uploaded.Id, url, nil
}

func tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	refreshToken := os.Getenv("YOUTUBE_REFRESH_TOKEN")
	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, or YOUTUBE_REFRESH_TOKEN not set")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope},
	}
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}), nil
}
