package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ImageInfo 上传图片的尺寸与格式
type ImageInfo struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format string `json:"format"`
}

// GetImageInfo 通过 ffprobe 读取图片尺寸
func GetImageInfo(path string) (*ImageInfo, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("image not found: %w", err)
	}

	out, err := ffmpeg.Probe(path)
	if err != nil {
		return nil, fmt.Errorf("probe image: %w", err)
	}
	return parseProbe(out)
}

func parseProbe(out string) (*ImageInfo, error) {
	var result struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
		Format struct {
			Format string `json:"format_name"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		return nil, fmt.Errorf("decode probe output: %w", err)
	}

	info := &ImageInfo{Format: "unknown"}
	for _, s := range result.Streams {
		if s.CodecType == "video" {
			info.Width = s.Width
			info.Height = s.Height
			break
		}
	}
	if parts := strings.Split(result.Format.Format, ","); parts[0] != "" {
		info.Format = parts[0]
	}
	return info, nil
}

// GenerateImageThumbnail 等比缩放到指定宽度
func GenerateImageThumbnail(src, dst string, width int) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}

	return ffmpeg.Input(src).
		Filter("scale", ffmpeg.Args{fmt.Sprintf("%d:-2", width)}).
		Output(dst, ffmpeg.KwArgs{
			"frames:v": "1",
			"q:v":      "3",
		}).
		OverWriteOutput().
		Run()
}

// GetFFmpegVersion 检查 ffmpeg 是否可用
func GetFFmpegVersion() (string, error) {
	cmd := exec.Command("ffmpeg", "-version", "-hide_banner")
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg unavailable: %v, %s", err, errOut.String())
	}

	line, _, _ := strings.Cut(out.String(), "\n")
	return line, nil
}
