package model

import "github.com/fekuna/omnipos-product-dal/internal/dal"

type MediaAlbum struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position *int64 `json:"position"`
}

func (a MediaAlbum) GetID() string {
	return a.ID
}

func MediaAlbumFromRecord(r *dal.Record) *MediaAlbum {
	if r == nil {
		return nil
	}
	return &MediaAlbum{
		ID:       r.ID,
		Name:     r.String("name"),
		Position: r.IntPtr("position"),
	}
}

type Media struct {
	BaseModel
	AlbumID  string      `json:"album_id"`
	FileName string      `json:"file_name"`
	MimeType string      `json:"mime_type"`
	FileSize int64       `json:"file_size"`
	Name     *string     `json:"name"`
	Album    *MediaAlbum `json:"album,omitempty"`
}

func MediaFromRecord(r *dal.Record) *Media {
	if r == nil {
		return nil
	}
	return &Media{
		BaseModel: baseFrom(r),
		AlbumID:   r.String("albumId"),
		FileName:  r.String("fileName"),
		MimeType:  r.String("mimeType"),
		FileSize:  r.Int("fileSize"),
		Name:      r.StringPtr("name"),
		Album:     MediaAlbumFromRecord(r.Related("album")),
	}
}

// ProductMedia links a product to a media file.
type ProductMedia struct {
	BaseModel
	ProductID string `json:"product_id"`
	MediaID   string `json:"media_id"`
	IsCover   bool   `json:"is_cover"`
	Position  *int64 `json:"position"`
	Media     *Media `json:"media,omitempty"`
}

func ProductMediaFromRecord(r *dal.Record) *ProductMedia {
	if r == nil {
		return nil
	}
	return &ProductMedia{
		BaseModel: baseFrom(r),
		ProductID: r.String("productId"),
		MediaID:   r.String("mediaId"),
		IsCover:   r.Bool("isCover"),
		Position:  r.IntPtr("position"),
		Media:     MediaFromRecord(r.Related("media")),
	}
}
