package transcode

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/mediaconvert/types"
)

// Encoding parameters of the merged output.
const (
	audioSelectorName = "Audio Selector 1"
	outputGroupName   = "File Group"

	videoMaxBitrate  = 5_000_000
	qvbrQualityLevel = 7
	audioBitrate     = 96_000
	audioSampleRate  = 48_000
)

// S3URI formats an s3:// location.
func S3URI(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

// JobSettings describes a merge of videoKey with the narration in audioKey.
// The external audio selector replaces any audio embedded in the video.
// destinationKey has no extension; the service appends ".mp4".
func JobSettings(bucket, videoKey, audioKey, destinationKey string) *types.JobSettings {
	return &types.JobSettings{
		Inputs: []types.Input{
			{
				AudioSelectors: map[string]types.AudioSelector{
					audioSelectorName: {
						DefaultSelection:       types.AudioDefaultSelectionNotDefault,
						ExternalAudioFileInput: aws.String(S3URI(bucket, audioKey)),
					},
				},
				VideoSelector:  &types.VideoSelector{},
				TimecodeSource: types.InputTimecodeSourceZerobased,
				FileInput:      aws.String(S3URI(bucket, videoKey)),
			},
		},
		OutputGroups: []types.OutputGroup{
			{
				Name: aws.String(outputGroupName),
				OutputGroupSettings: &types.OutputGroupSettings{
					Type: types.OutputGroupTypeFileGroupSettings,
					FileGroupSettings: &types.FileGroupSettings{
						Destination: aws.String(S3URI(bucket, destinationKey)),
					},
				},
				Outputs: []types.Output{
					{
						VideoDescription: &types.VideoDescription{
							CodecSettings: &types.VideoCodecSettings{
								Codec: types.VideoCodecH264,
								H264Settings: &types.H264Settings{
									RateControlMode:   types.H264RateControlModeQvbr,
									SceneChangeDetect: types.H264SceneChangeDetectTransitionDetection,
									MaxBitrate:        aws.Int32(videoMaxBitrate),
									QvbrSettings: &types.H264QvbrSettings{
										QvbrQualityLevel: aws.Int32(qvbrQualityLevel),
									},
								},
							},
						},
						AudioDescriptions: []types.AudioDescription{
							{
								AudioSourceName: aws.String(audioSelectorName),
								CodecSettings: &types.AudioCodecSettings{
									Codec: types.AudioCodecAac,
									AacSettings: &types.AacSettings{
										Bitrate:    aws.Int32(audioBitrate),
										CodingMode: types.AacCodingModeCodingMode20,
										SampleRate: aws.Int32(audioSampleRate),
									},
								},
							},
						},
						ContainerSettings: &types.ContainerSettings{
							Container:   types.ContainerTypeMp4,
							Mp4Settings: &types.Mp4Settings{},
						},
					},
				},
			},
		},
	}
}
