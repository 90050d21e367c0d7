package imagegen

import (
	"strings"

	"newsroom/internal/domain/article"
)

const negativePrompt = "watermark, text, logo, signature, blurry, low quality, deformed, ugly, duplicate, mutilated"

type workflowTemplate struct {
	Width       int
	Height      int
	Steps       int
	CFG         float64
	Sampler     string
	StylePrefix string
}

var workflowTemplates = map[article.ImageType]workflowTemplate{
	article.ImageIllustration: {Width: 1024, Height: 1024, Steps: 30, CFG: 7.5, Sampler: "euler_ancestral", StylePrefix: "digital illustration, editorial style, "},
	article.ImageInfographic:  {Width: 1024, Height: 1536, Steps: 30, CFG: 7.0, Sampler: "euler", StylePrefix: "clean infographic, data visualization, minimal design, "},
	article.ImagePhoto:        {Width: 1024, Height: 768, Steps: 35, CFG: 7.5, Sampler: "dpmpp_2m", StylePrefix: "photorealistic, editorial photography, "},
	article.ImageAnimation:    {Width: 1024, Height: 1024, Steps: 25, CFG: 7.0, Sampler: "euler_ancestral", StylePrefix: "animated style, motion graphics, "},
}

func templateFor(imageType article.ImageType) workflowTemplate {
	if tmpl, ok := workflowTemplates[imageType]; ok {
		return tmpl
	}
	return workflowTemplates[article.DefaultImageType]
}

type node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
}

// BuildWorkflow returns a ComfyUI API-format graph: checkpoint, prompts, latent, sampler, decode, save.
func BuildWorkflow(checkpoint string, imageType article.ImageType, prompt string, seed int64) map[string]node {
	tmpl := templateFor(imageType)

	return map[string]node{
		"3": {ClassType: "KSampler", Inputs: map[string]any{
			"seed":         seed,
			"steps":        tmpl.Steps,
			"cfg":          tmpl.CFG,
			"sampler_name": tmpl.Sampler,
			"scheduler":    "normal",
			"denoise":      1.0,
			"model":        []any{"4", 0},
			"positive":     []any{"6", 0},
			"negative":     []any{"7", 0},
			"latent_image": []any{"5", 0},
		}},
		"4": {ClassType: "CheckpointLoaderSimple", Inputs: map[string]any{
			"ckpt_name": checkpoint,
		}},
		"5": {ClassType: "EmptyLatentImage", Inputs: map[string]any{
			"width":      tmpl.Width,
			"height":     tmpl.Height,
			"batch_size": 1,
		}},
		"6": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": tmpl.StylePrefix + strings.TrimSpace(prompt),
			"clip": []any{"4", 1},
		}},
		"7": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": negativePrompt,
			"clip": []any{"4", 1},
		}},
		"8": {ClassType: "VAEDecode", Inputs: map[string]any{
			"samples": []any{"3", 0},
			"vae":     []any{"4", 2},
		}},
		"9": {ClassType: "SaveImage", Inputs: map[string]any{
			"filename_prefix": "newsroom",
			"images":          []any{"8", 0},
		}},
	}
}
