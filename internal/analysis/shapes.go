package analysis

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"

	"github.com/kiranshivaraju/videolens/pkg/models"
)

const unknownLabel = "Unknown"

// Legacy observation categories, matched by exact label.
const (
	CategoryFacial   = "Facial Expressions and Emotions"
	CategoryPosture  = "Body Posture and Stance"
	CategoryGestures = "Hand Gestures and Meanings"
	CategoryOverall  = "Overall Emotional State"
)

// shape is one known response schema. decode reports false when the object
// does not carry the schema's discriminating keys.
type shape struct {
	name   string
	decode func(obj json.RawMessage) (models.AnalysisResult, bool)
}

// Shapes are tried in order; the named-field schema is the current one.
var shapes = []shape{
	{name: "observations", decode: decodeObservationsShape},
	{name: "person", decode: decodePersonShape},
	{name: "named", decode: decodeNamedShape},
}

func decodeDocument(data json.RawMessage) (models.AnalysisResult, bool) {
	obj, ok := firstObject(data)
	if !ok {
		return models.AnalysisResult{}, false
	}
	for _, s := range shapes {
		if res, ok := s.decode(obj); ok {
			return res, true
		}
	}
	return models.AnalysisResult{}, false
}

// firstObject unwraps a top-level list to its first element.
func firstObject(data json.RawMessage) (json.RawMessage, bool) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil || len(items) == 0 {
			return nil, false
		}
		data = bytes.TrimSpace(items[0])
	}
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	return data, true
}

// --- named-field schema ---

type wireDetail struct {
	Emotion           text     `json:"emotion"`
	Posture           text     `json:"posture"`
	Gesture           text     `json:"gesture"`
	Label             text     `json:"label"`
	Confidence        number   `json:"confidence"`
	Description       text     `json:"description"`
	Intensity         number   `json:"intensity"`
	Context           text     `json:"context"`
	TimeMarkers       textList `json:"timeMarkers"`
	TruthfulnessScore number   `json:"truthfulnessScore"`
}

func (d wireDetail) label() string {
	for _, t := range []text{d.Emotion, d.Posture, d.Gesture, d.Label} {
		if v := t.or(""); v != "" {
			return v
		}
	}
	return unknownLabel
}

func (d wireDetail) toModel() models.AnalysisDetail {
	return models.AnalysisDetail{
		Emotion:           d.label(),
		Confidence:        d.Confidence.unit(),
		Description:       d.Description.or(""),
		Intensity:         d.Intensity.ptr(),
		Context:           d.Context.or(""),
		TimeMarkers:       []string(d.TimeMarkers),
		TruthfulnessScore: d.TruthfulnessScore.ptr(),
	}
}

// detailField accepts a detail object, a list of detail objects (the most
// confident wins) or a bare label string.
type detailField struct {
	d   wireDetail
	set bool
}

func (f *detailField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '{':
		var o optional[wireDetail]
		_ = o.UnmarshalJSON(b)
		f.d, f.set = o.v, o.set
	case '[':
		var l list[wireDetail]
		_ = l.UnmarshalJSON(b)
		if best, ok := mostConfident(l.items); ok {
			f.d, f.set = best, true
		}
	case '"':
		var t text
		_ = t.UnmarshalJSON(b)
		if t.set {
			f.d, f.set = wireDetail{Emotion: t}, true
		}
	}
	return nil
}

func (f detailField) toModel() models.AnalysisDetail {
	if !f.set {
		return defaultDetail()
	}
	return f.d.toModel()
}

func mostConfident(items []wireDetail) (wireDetail, bool) {
	if len(items) == 0 {
		return wireDetail{}, false
	}
	best := items[0]
	for _, it := range items[1:] {
		if it.Confidence.or(0) > best.Confidence.or(0) {
			best = it
		}
	}
	return best, true
}

type wireDeception struct {
	Type        text   `json:"type"`
	Description text   `json:"description"`
	Confidence  number `json:"confidence"`
	Timestamp   number `json:"timestamp"`
}

type wireMetric struct {
	Level       number `json:"level"`
	Description text   `json:"description"`
	Context     text   `json:"context"`
	Timestamp   number `json:"timestamp"`
}

type wireStrength struct {
	Title       text   `json:"title"`
	Description text   `json:"description"`
	Confidence  number `json:"confidence"`
}

type wireArea struct {
	Title        text `json:"title"`
	Description  text `json:"description"`
	Significance text `json:"significance"`
}

type wireQuestionResponse struct {
	ResponseStyle      text     `json:"responseStyle"`
	TopicHandling      text     `json:"topicHandling"`
	BehavioralPatterns textList `json:"behavioralPatterns"`
}

type wireEvent struct {
	Timestamp   number `json:"timestamp"`
	Description text   `json:"description"`
}

type wireImpact struct {
	Question   text   `json:"question"`
	Timestamp  number `json:"timestamp"`
	MoodChange text   `json:"moodChange"`
	Analysis   text   `json:"analysis"`
	Confidence number `json:"confidence"`
}

type namedPayload struct {
	FacialExpression    detailField                    `json:"facialExpression"`
	BodyPosture         detailField                    `json:"bodyPosture"`
	HandGestures        detailField                    `json:"handGestures"`
	OverallEmotion      text                           `json:"overallEmotion"`
	ConfidenceScore     number                         `json:"confidenceScore"`
	Analysis            text                           `json:"analysis"`
	DeceptionIndicators list[wireDeception]            `json:"deceptionIndicators"`
	ConfidenceMetrics   list[wireMetric]               `json:"confidenceMetrics"`
	KeyStrengths        list[wireStrength]             `json:"keyStrengths"`
	AreasOfNote         list[wireArea]                 `json:"areasOfNote"`
	QuestionResponse    optional[wireQuestionResponse] `json:"questionResponse"`
	Timeline            list[wireEvent]                `json:"timeline"`
	QuestionImpacts     list[wireImpact]               `json:"questionImpacts"`
}

var namedKeys = []string{
	"facialExpression", "bodyPosture", "handGestures", "overallEmotion",
	"confidenceScore", "analysis", "deceptionIndicators", "confidenceMetrics",
	"keyStrengths", "areasOfNote", "questionResponse", "timeline", "questionImpacts",
}

func decodeNamedShape(obj json.RawMessage) (models.AnalysisResult, bool) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(obj, &keys); err != nil || !hasAnyKey(keys, namedKeys) {
		return models.AnalysisResult{}, false
	}
	var p namedPayload
	if err := json.Unmarshal(obj, &p); err != nil {
		return models.AnalysisResult{}, false
	}

	res := baseResult()
	res.FacialExpression = p.FacialExpression.toModel()
	res.BodyPosture = p.BodyPosture.toModel()
	res.HandGestures = p.HandGestures.toModel()
	res.OverallEmotion = p.OverallEmotion.or(unknownLabel)
	res.ConfidenceScore = p.ConfidenceScore.unit()
	res.Analysis = p.Analysis.or("")

	for _, d := range p.DeceptionIndicators.items {
		res.DeceptionIndicators = append(res.DeceptionIndicators, models.DeceptionIndicator{
			Type:        d.Type.or(unknownLabel),
			Description: d.Description.or(""),
			Confidence:  d.Confidence.unit(),
			Timestamp:   d.Timestamp.or(0),
		})
	}
	for _, m := range p.ConfidenceMetrics.items {
		res.ConfidenceMetrics = append(res.ConfidenceMetrics, models.ConfidenceMetric{
			Level:       m.Level.unit(),
			Description: m.Description.or(""),
			Context:     m.Context.or(""),
			Timestamp:   m.Timestamp.or(0),
		})
	}
	for _, s := range p.KeyStrengths.items {
		res.KeyStrengths = append(res.KeyStrengths, models.KeyStrength{
			Title:       s.Title.or(""),
			Description: s.Description.or(""),
			Confidence:  s.Confidence.unit(),
		})
	}
	for _, a := range p.AreasOfNote.items {
		res.AreasOfNote = append(res.AreasOfNote, models.AreaOfNote{
			Title:        a.Title.or(""),
			Description:  a.Description.or(""),
			Significance: a.Significance.or(""),
		})
	}
	if p.QuestionResponse.set {
		qr := p.QuestionResponse.v
		patterns := []string(qr.BehavioralPatterns)
		if patterns == nil {
			patterns = []string{}
		}
		res.QuestionResponse = &models.QuestionResponse{
			ResponseStyle:      qr.ResponseStyle.or(""),
			TopicHandling:      qr.TopicHandling.or(""),
			BehavioralPatterns: patterns,
		}
	}
	for _, e := range p.Timeline.items {
		res.Timeline = append(res.Timeline, models.TimelineEvent{
			Timestamp:   e.Timestamp.or(0),
			Description: e.Description.or(""),
		})
	}
	for _, q := range p.QuestionImpacts.items {
		var conf *float64
		if q.Confidence.set {
			c := q.Confidence.unit()
			conf = &c
		}
		res.QuestionImpacts = append(res.QuestionImpacts, models.QuestionImpact{
			Question:   q.Question.or(""),
			Timestamp:  q.Timestamp.or(0),
			MoodChange: q.MoodChange.or(""),
			Analysis:   q.Analysis.or(""),
			Confidence: conf,
		})
	}
	return res, true
}

// --- person schema ---

type personPayload struct {
	Person *struct {
		Facial   list[wireDetail]     `json:"facialExpressionsAndEmotions"`
		Posture  list[wireDetail]     `json:"bodyPostureAndStance"`
		Gestures list[wireDetail]     `json:"handGesturesAndMeanings"`
		Overall  optional[wireDetail] `json:"overallAnalysis"`
	} `json:"person"`
}

func decodePersonShape(obj json.RawMessage) (models.AnalysisResult, bool) {
	var p personPayload
	if err := json.Unmarshal(obj, &p); err != nil || p.Person == nil {
		return models.AnalysisResult{}, false
	}

	res := baseResult()
	res.FacialExpression = bestDetail(p.Person.Facial.items)
	res.BodyPosture = bestDetail(p.Person.Posture.items)
	res.HandGestures = bestDetail(p.Person.Gestures.items)
	if p.Person.Overall.set {
		o := p.Person.Overall.v
		res.OverallEmotion = o.label()
		res.ConfidenceScore = o.Confidence.unit()
		res.Analysis = o.Description.or("")
	}
	return res, true
}

func bestDetail(items []wireDetail) models.AnalysisDetail {
	best, ok := mostConfident(items)
	if !ok {
		return defaultDetail()
	}
	return best.toModel()
}

// --- legacy observations schema ---

type wireDetected struct {
	Emotion    text   `json:"emotion"`
	Confidence number `json:"confidence"`
}

type wireObservation struct {
	Category        text                                 `json:"category"`
	Emotion         text                                 `json:"emotion"`
	EmotionDetected list[wireDetected]                   `json:"emotionDetected"`
	Confidence      number                               `json:"confidence"`
	Description     text                                 `json:"description"`
	Details         optional[map[string]json.RawMessage] `json:"details"`
}

func (o wireObservation) label() string {
	if v := o.Emotion.or(""); v != "" {
		return v
	}
	if len(o.EmotionDetected.items) > 0 {
		if v := o.EmotionDetected.items[0].Emotion.or(""); v != "" {
			return v
		}
	}
	// Older responses carried the label as the first string under "details".
	details := o.Details.v
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var v string
		if err := json.Unmarshal(details[k], &v); err == nil && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return unknownLabel
}

func (o wireObservation) confidence() float64 {
	if o.Confidence.set {
		return o.Confidence.unit()
	}
	if len(o.EmotionDetected.items) > 0 {
		return o.EmotionDetected.items[0].Confidence.unit()
	}
	return 0
}

func (o wireObservation) toModel() models.AnalysisDetail {
	return models.AnalysisDetail{
		Emotion:     o.label(),
		Confidence:  o.confidence(),
		Description: o.Description.or(""),
	}
}

func decodeObservationsShape(obj json.RawMessage) (models.AnalysisResult, bool) {
	var p struct {
		Observations  json.RawMessage `json:"observations"`
		VideoAnalysis *struct {
			Observations json.RawMessage `json:"observations"`
		} `json:"videoAnalysis"`
	}
	if err := json.Unmarshal(obj, &p); err != nil {
		return models.AnalysisResult{}, false
	}
	if p.VideoAnalysis != nil && len(p.VideoAnalysis.Observations) > 0 {
		if res, ok := decodeObservationList(p.VideoAnalysis.Observations); ok {
			return res, true
		}
	}
	if len(p.Observations) > 0 {
		return decodeObservationList(p.Observations)
	}
	return models.AnalysisResult{}, false
}

func decodeObservationList(data json.RawMessage) (models.AnalysisResult, bool) {
	var l list[wireObservation]
	if err := l.UnmarshalJSON(data); err != nil || !l.set {
		return models.AnalysisResult{}, false
	}
	byCategory := make(map[string]wireObservation, len(l.items))
	for _, o := range l.items {
		cat := o.Category.or("")
		if _, seen := byCategory[cat]; !seen {
			byCategory[cat] = o
		}
	}

	res := baseResult()
	res.FacialExpression = byCategory[CategoryFacial].toModel()
	res.BodyPosture = byCategory[CategoryPosture].toModel()
	res.HandGestures = byCategory[CategoryGestures].toModel()
	overall := byCategory[CategoryOverall]
	res.OverallEmotion = overall.label()
	res.ConfidenceScore = overall.confidence()
	res.Analysis = overall.Description.or("")
	return res, true
}

// --- defaults ---

func baseResult() models.AnalysisResult {
	return models.AnalysisResult{
		Timestamp:        0,
		FacialExpression: defaultDetail(),
		BodyPosture:      defaultDetail(),
		HandGestures:     defaultDetail(),
		OverallEmotion:   unknownLabel,
		KeyStrengths:     []models.KeyStrength{},
		AreasOfNote:      []models.AreaOfNote{},
		Timeline:         []models.TimelineEvent{},
	}
}

func defaultDetail() models.AnalysisDetail {
	return models.AnalysisDetail{Emotion: unknownLabel}
}

func hasAnyKey(m map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}
