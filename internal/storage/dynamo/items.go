package dynamo

import (
	"fmt"
	"time"

	"link-insights/internal/domain/click"
	"link-insights/internal/domain/insight"
	"link-insights/internal/domain/link"
	"link-insights/internal/domain/monitor"
)

type linkItem struct {
	Code               string `dynamodbav:"code"`
	DestinationURL     string `dynamodbav:"destinationUrl"`
	Alias              string `dynamodbav:"alias,omitempty"`
	Visibility         string `dynamodbav:"visibility"`
	Title              string `dynamodbav:"title,omitempty"`
	ClickCount         int64  `dynamodbav:"clickCount"`
	CreatedAt          int64  `dynamodbav:"createdAt"`
	CachedInsight      string `dynamodbav:"cachedInsight,omitempty"`
	InsightGeneratedAt int64  `dynamodbav:"insightGeneratedAt,omitempty"`
}

type aliasItem struct {
	Alias string `dynamodbav:"alias"`
	Code  string `dynamodbav:"code"`
}

type clickItem struct {
	Code      string `dynamodbav:"code"`
	SK        string `dynamodbav:"sk"`
	ID        string `dynamodbav:"id"`
	Timestamp int64  `dynamodbav:"timestamp"`
	IPHash    string `dynamodbav:"ipHash"`
	UserAgent string `dynamodbav:"userAgent"`
	Referrer  string `dynamodbav:"referrer"`
	Country   string `dynamodbav:"country"`
	Device    string `dynamodbav:"deviceType"`
}

type counterItem struct {
	Code        string `dynamodbav:"code"`
	SK          string `dynamodbav:"sk"`
	Category    string `dynamodbav:"category"`
	Value       string `dynamodbav:"categoryValue"`
	Count       int64  `dynamodbav:"count"`
	LastUpdated int64  `dynamodbav:"lastUpdated"`
}

type historyItem struct {
	Code         string `dynamodbav:"code"`
	GeneratedAt  int64  `dynamodbav:"generatedAt"`
	Text         string `dynamodbav:"insightText"`
	AnalysisType string `dynamodbav:"analysisType"`
	Model        string `dynamodbav:"modelInfo"`
}

type metricItem struct {
	Kind      string `dynamodbav:"metricType"`
	SK        string `dynamodbav:"sk"`
	ID        string `dynamodbav:"id"`
	Timestamp int64  `dynamodbav:"timestamp"`
	Code      string `dynamodbav:"code,omitempty"`
	URL       string `dynamodbav:"url,omitempty"`
	Operation string `dynamodbav:"operation,omitempty"`
	Duration  int64  `dynamodbav:"durationNs,omitempty"`
	Detail    string `dynamodbav:"detail,omitempty"`
}

// timeKey renders a millisecond timestamp so that string order matches time order.
func timeKey(t time.Time) string {
	return fmt.Sprintf("%013d", t.UnixMilli())
}

func counterKey(category click.Category, value string) string {
	return string(category) + "#" + value
}

func toLinkItem(rec link.Record) linkItem {
	item := linkItem{
		Code:           rec.Code,
		DestinationURL: rec.DestinationURL,
		Alias:          rec.Alias,
		Visibility:     string(rec.Visibility),
		Title:          rec.Title,
		ClickCount:     rec.ClickCount,
		CreatedAt:      rec.CreatedAt.UnixMilli(),
		CachedInsight:  rec.CachedInsight,
	}
	if !rec.InsightGeneratedAt.IsZero() {
		item.InsightGeneratedAt = rec.InsightGeneratedAt.UnixMilli()
	}
	return item
}

func (i linkItem) record() link.Record {
	rec := link.Record{
		Code:           i.Code,
		DestinationURL: i.DestinationURL,
		Alias:          i.Alias,
		Visibility:     link.Visibility(i.Visibility),
		Title:          i.Title,
		ClickCount:     i.ClickCount,
		CreatedAt:      time.UnixMilli(i.CreatedAt).UTC(),
		CachedInsight:  i.CachedInsight,
	}
	if i.InsightGeneratedAt != 0 {
		rec.InsightGeneratedAt = time.UnixMilli(i.InsightGeneratedAt).UTC()
	}
	return rec
}

func toClickItem(e click.Event) clickItem {
	return clickItem{
		Code:      e.Code,
		SK:        timeKey(e.Timestamp) + "#" + e.ID,
		ID:        e.ID,
		Timestamp: e.Timestamp.UnixMilli(),
		IPHash:    e.IPHash,
		UserAgent: e.UserAgent,
		Referrer:  e.Referrer,
		Country:   e.Country,
		Device:    string(e.Device),
	}
}

func (i clickItem) event() click.Event {
	return click.Event{
		ID:        i.ID,
		Code:      i.Code,
		Timestamp: time.UnixMilli(i.Timestamp).UTC(),
		IPHash:    i.IPHash,
		UserAgent: i.UserAgent,
		Referrer:  i.Referrer,
		Country:   i.Country,
		Device:    click.Device(i.Device),
	}
}

func (i counterItem) counter() click.Counter {
	return click.Counter{
		Code:        i.Code,
		Category:    click.Category(i.Category),
		Value:       i.Value,
		Count:       i.Count,
		LastUpdated: time.UnixMilli(i.LastUpdated).UTC(),
	}
}

func toHistoryItem(e insight.HistoryEntry) historyItem {
	return historyItem{
		Code:         e.Code,
		GeneratedAt:  e.GeneratedAt.UnixMilli(),
		Text:         e.Text,
		AnalysisType: e.AnalysisType,
		Model:        e.Model,
	}
}

func toMetricItem(m monitor.Metric) metricItem {
	return metricItem{
		Kind:      string(m.Kind),
		SK:        timeKey(m.Timestamp) + "#" + m.ID,
		ID:        m.ID,
		Timestamp: m.Timestamp.UnixMilli(),
		Code:      m.Code,
		URL:       m.URL,
		Operation: m.Operation,
		Duration:  int64(m.Duration),
		Detail:    m.Detail,
	}
}

func (i metricItem) metric() monitor.Metric {
	return monitor.Metric{
		ID:        i.ID,
		Kind:      monitor.Kind(i.Kind),
		Timestamp: time.UnixMilli(i.Timestamp).UTC(),
		Code:      i.Code,
		URL:       i.URL,
		Operation: i.Operation,
		Duration:  time.Duration(i.Duration),
		Detail:    i.Detail,
	}
}
