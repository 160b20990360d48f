package models

import (
	"strings"
	"time"
)

// WordsPerMinute is the reading speed used to estimate reading time.
const WordsPerMinute = 200

// Author is the public profile attached to a post.
type Author struct {
	Name      string `json:"name" bson:"name"`
	AvatarURL string `json:"avatarUrl,omitempty" bson:"avatarUrl,omitempty"`
}

// Post is a published blog post as exposed by the content source.
type Post struct {
	ID          string    `json:"id" bson:"_id"`
	Title       string    `json:"title" bson:"title"`
	Slug        string    `json:"slug" bson:"slug"`
	Excerpt     string    `json:"excerpt" bson:"excerpt"`
	Body        string    `json:"body,omitempty" bson:"body"`
	CoverImage  string    `json:"coverImage,omitempty" bson:"coverImage,omitempty"`
	Tags        []string  `json:"tags" bson:"tags"`
	Author      Author    `json:"author" bson:"author"`
	Published   bool      `json:"-" bson:"published"`
	PublishedAt time.Time `json:"publishedAt" bson:"publishedAt"`
	ReadingTime int       `json:"readingTime" bson:"readingTime"`
}

// PostSummary is a post without its body, used for listings and search results.
type PostSummary struct {
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Excerpt     string    `json:"excerpt"`
	CoverImage  string    `json:"coverImage,omitempty"`
	Tags        []string  `json:"tags"`
	Author      Author    `json:"author"`
	PublishedAt time.Time `json:"publishedAt"`
	ReadingTime int       `json:"readingTime"`
}

// Summary drops the body of the post.
func (p *Post) Summary() PostSummary {
	return PostSummary{
		Title:       p.Title,
		Slug:        p.Slug,
		Excerpt:     p.Excerpt,
		CoverImage:  p.CoverImage,
		Tags:        p.Tags,
		Author:      p.Author,
		PublishedAt: p.PublishedAt,
		ReadingTime: p.ReadingTime,
	}
}

// EstimateReadingTime returns the reading time of text in whole minutes, at least 1.
func EstimateReadingTime(text string) int {
	words := len(strings.Fields(text))
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
