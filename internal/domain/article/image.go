package article

import "strings"

type ImageType string

const (
	ImageIllustration ImageType = "illustration"
	ImageInfographic  ImageType = "infographic"
	ImagePhoto        ImageType = "photo"
	ImageAnimation    ImageType = "animation"
)

const DefaultImageType = ImageIllustration

func ParseImageType(raw string) (ImageType, error) {
	imageType := ImageType(strings.ToLower(strings.TrimSpace(raw)))
	switch imageType {
	case "":
		return DefaultImageType, nil
	case ImageIllustration, ImageInfographic, ImagePhoto, ImageAnimation:
		return imageType, nil
	default:
		return "", Validationf("invalid image_type %q (illustration|infographic|photo|animation)", raw)
	}
}

type ImageStatus string

const (
	ImagePending    ImageStatus = "pending"
	ImageGenerating ImageStatus = "generating"
	ImageReady      ImageStatus = "ready"
	ImageFailed     ImageStatus = "failed"
)

// ResolveImageStatus derives a status for records written before the image pipeline tracked one.
func ResolveImageStatus(stored ImageStatus, prompt string, url string) ImageStatus {
	if stored != "" {
		return stored
	}
	switch {
	case strings.TrimSpace(url) != "":
		return ImageReady
	case strings.TrimSpace(prompt) != "":
		return ImageGenerating
	default:
		return ImagePending
	}
}
