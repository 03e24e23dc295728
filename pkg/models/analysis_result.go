package models

// AnalysisDetail describes one observed modality (face, posture, hands).
type AnalysisDetail struct {
	Emotion           string   `json:"emotion"`
	Confidence        float64  `json:"confidence"`
	Description       string   `json:"description"`
	Intensity         *float64 `json:"intensity,omitempty"`
	Context           string   `json:"context,omitempty"`
	TimeMarkers       []string `json:"timeMarkers,omitempty"`
	TruthfulnessScore *float64 `json:"truthfulnessScore,omitempty"`
}

type DeceptionIndicator struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
	Timestamp   float64 `json:"timestamp"`
}

type ConfidenceMetric struct {
	Level       float64 `json:"level"`
	Description string  `json:"description"`
	Context     string  `json:"context"`
	Timestamp   float64 `json:"timestamp"`
}

type KeyStrength struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Confidence  float64 `json:"confidence"`
}

type AreaOfNote struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Significance string `json:"significance"`
}

type QuestionResponse struct {
	ResponseStyle      string   `json:"responseStyle"`
	TopicHandling      string   `json:"topicHandling"`
	BehavioralPatterns []string `json:"behavioralPatterns"`
}

type TimelineEvent struct {
	Timestamp   float64 `json:"timestamp"`
	Description string  `json:"description"`
}

// QuestionImpact records a question that visibly changed the speaker's mood.
type QuestionImpact struct {
	Question   string   `json:"question"`
	Timestamp  float64  `json:"timestamp"`
	MoodChange string   `json:"moodChange"`
	Analysis   string   `json:"analysis,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// AnalysisResult is the normalized behavioral analysis of a video.
// Timestamp is always 0: results cover the whole video, not a segment.
type AnalysisResult struct {
	Timestamp           float64              `json:"timestamp"`
	FacialExpression    AnalysisDetail       `json:"facialExpression"`
	BodyPosture         AnalysisDetail       `json:"bodyPosture"`
	HandGestures        AnalysisDetail       `json:"handGestures"`
	OverallEmotion      string               `json:"overallEmotion"`
	ConfidenceScore     float64              `json:"confidenceScore"`
	Analysis            string               `json:"analysis"`
	DeceptionIndicators []DeceptionIndicator `json:"deceptionIndicators,omitempty"`
	ConfidenceMetrics   []ConfidenceMetric   `json:"confidenceMetrics,omitempty"`
	KeyStrengths        []KeyStrength        `json:"keyStrengths"`
	AreasOfNote         []AreaOfNote         `json:"areasOfNote"`
	QuestionResponse    *QuestionResponse    `json:"questionResponse,omitempty"`
	Timeline            []TimelineEvent      `json:"timeline"`
	QuestionImpacts     []QuestionImpact     `json:"questionImpacts,omitempty"`
}

// Clone returns a deep copy of r.
func (r AnalysisResult) Clone() AnalysisResult {
	c := r
	c.FacialExpression = r.FacialExpression.clone()
	c.BodyPosture = r.BodyPosture.clone()
	c.HandGestures = r.HandGestures.clone()
	c.DeceptionIndicators = cloneSlice(r.DeceptionIndicators)
	c.ConfidenceMetrics = cloneSlice(r.ConfidenceMetrics)
	c.KeyStrengths = cloneSlice(r.KeyStrengths)
	c.AreasOfNote = cloneSlice(r.AreasOfNote)
	c.Timeline = cloneSlice(r.Timeline)
	if r.QuestionResponse != nil {
		qr := *r.QuestionResponse
		qr.BehavioralPatterns = cloneSlice(qr.BehavioralPatterns)
		c.QuestionResponse = &qr
	}
	if r.QuestionImpacts != nil {
		c.QuestionImpacts = make([]QuestionImpact, len(r.QuestionImpacts))
		for i, qi := range r.QuestionImpacts {
			qi.Confidence = cloneFloat(qi.Confidence)
			c.QuestionImpacts[i] = qi
		}
	}
	return c
}

func (d AnalysisDetail) clone() AnalysisDetail {
	d.Intensity = cloneFloat(d.Intensity)
	d.TruthfulnessScore = cloneFloat(d.TruthfulnessScore)
	d.TimeMarkers = cloneSlice(d.TimeMarkers)
	return d
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
