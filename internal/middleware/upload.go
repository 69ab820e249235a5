package middleware

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// ThumbnailKey is the gin.Context key holding the parsed *Thumbnail
	ThumbnailKey = "thumbnail"

	// ThumbnailField is the multipart field carrying the club thumbnail
	ThumbnailField = "thumbnail"

	// multipartOverhead is allowed on top of the file limit for the other form fields
	multipartOverhead = 1 << 20

	msgThumbnailTooLarge = "썸네일 파일이 너무 큽니다."
	msgInvalidMultipart  = "multipart 요청을 읽을 수 없습니다."
)

// Thumbnail is an uploaded club image held in memory until the creation flow stores it
type Thumbnail struct {
	Data        []byte
	ContentType string
	Filename    string
}

// ThumbnailUploadMiddleware parses multipart/form-data requests, enforces maxBytes on the
// thumbnail file, and stores it under ThumbnailKey. Non-multipart requests pass through
// untouched so JSON bodies still reach the handler. Other form fields remain available
// through c.PostForm.
func ThumbnailUploadMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		mediaType, _, _ := mime.ParseMediaType(c.GetHeader("Content-Type"))
		if mediaType != "multipart/form-data" {
			c.Next()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+multipartOverhead)
		if err := c.Request.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msgThumbnailTooLarge})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msgInvalidMultipart})
			return
		}

		file, header, err := c.Request.FormFile(ThumbnailField)
		if errors.Is(err, http.ErrMissingFile) {
			c.Next()
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msgInvalidMultipart})
			return
		}
		defer file.Close()

		if header.Size > maxBytes {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msgThumbnailTooLarge})
			return
		}

		data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msgInvalidMultipart})
			return
		}
		if int64(len(data)) > maxBytes {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msgThumbnailTooLarge})
			return
		}
		if len(data) == 0 {
			c.Next()
			return
		}

		contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(data)
		}

		c.Set(ThumbnailKey, &Thumbnail{
			Data:        data,
			ContentType: contentType,
			Filename:    header.Filename,
		})

		c.Next()
	}
}

// UploadedThumbnail returns the thumbnail stored by ThumbnailUploadMiddleware, or nil.
func UploadedThumbnail(c *gin.Context) *Thumbnail {
	v, ok := c.Get(ThumbnailKey)
	if !ok {
		return nil
	}
	t, _ := v.(*Thumbnail)
	return t
}
