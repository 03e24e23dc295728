package ai

import "github.com/kiranshivaraju/videolens/pkg/models"

// AnalysisPrompt is the fixed behavioral-analysis instruction sent with every video.
// The field names match what analysis.Normalize reads.
const AnalysisPrompt = `Analyze the speaker's behavior in this video and respond with a single JSON object, no prose and no code fences.

Use exactly this structure:
{
  "facialExpression": {"emotion": string, "confidence": number, "description": string, "intensity": number, "context": string, "timeMarkers": [string], "truthfulnessScore": number},
  "bodyPosture": {"emotion": string, "confidence": number, "description": string, "intensity": number, "context": string, "timeMarkers": [string], "truthfulnessScore": number},
  "handGestures": {"emotion": string, "confidence": number, "description": string, "intensity": number, "context": string, "timeMarkers": [string], "truthfulnessScore": number},
  "overallEmotion": string,
  "confidenceScore": number,
  "analysis": string,
  "deceptionIndicators": [{"type": string, "description": string, "confidence": number, "timestamp": number}],
  "confidenceMetrics": [{"level": number, "description": string, "context": string, "timestamp": number}],
  "keyStrengths": [{"title": string, "description": string, "confidence": number}],
  "areasOfNote": [{"title": string, "description": string, "significance": string}],
  "questionResponse": {"responseStyle": string, "topicHandling": string, "behavioralPatterns": [string]},
  "timeline": [{"timestamp": number, "description": string}],
  "questionImpacts": [{"question": string, "timestamp": number, "moodChange": string, "analysis": string, "confidence": number}]
}

Guidance:
1. facialExpression: facial movements, micro-expressions and emotional indicators.
2. bodyPosture: positioning, posture shifts and what they indicate about confidence or state of mind. Put the posture label in "emotion".
3. handGestures: specific hand movements and their communicative intent. Put the gesture label in "emotion".
4. overallEmotion, confidenceScore and analysis: a comprehensive interpretation of the speaker's emotional state and perceived authenticity.
5. Every confidence, intensity, level and truthfulnessScore is a number between 0 and 1.
6. Timestamps are seconds from the start of the video.
7. questionImpacts lists questions put to the speaker that visibly changed their mood; use an empty list when there are none.
Focus on how these elements combine to convey the speaker's message and emotional state.`

// ResponseMimeType is the structured-output type requested from the provider.
const ResponseMimeType = "application/json"

func responseConstraints(maxOutputTokens int) models.ResponseConstraints {
	return models.ResponseConstraints{MimeType: ResponseMimeType, MaxOutputTokens: maxOutputTokens}
}
