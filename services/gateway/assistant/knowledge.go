// Copyright (C) 2026 HealthBridge Technologies (platform@healthbridge.sa)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package assistant implements the response generator boundary: a
// rule-based bilingual knowledge base that works offline, and an
// optional OpenAI-backed generator that degrades to the knowledge base
// when the upstream is unavailable.
package assistant

import (
	"context"
	"strings"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway/stream"
)

// Response categories attached to generated replies. Clients use the
// category tag to route follow-up UI (e.g. linking to the claims page).
const (
	CategoryEligibility = "eligibility"
	CategoryClaims      = "claims"
	CategoryCoverage    = "coverage"
	CategoryProviders   = "providers"
	CategoryGeneral     = "general"
)

// topic is one knowledge-base entry: keyword triggers per language and
// the canned answer per language.
type topic struct {
	category   string
	keywords   map[string][]string
	answers    map[string]string
	confidence float64
}

// KnowledgeBase is the canned rule-based generator. It scores each topic
// by keyword hits against the lower-cased message and answers with the
// best-scoring topic's text in the requested language, falling back to
// English when the language has no entry.
//
// # Thread Safety
//
// Safe for concurrent use; topics are read-only after construction.
type KnowledgeBase struct {
	topics   []topic
	fallback map[string]string
}

var _ stream.Generator = (*KnowledgeBase)(nil)

// NewKnowledgeBase builds the built-in insurance knowledge base covering
// eligibility, claims, coverage, and provider topics in English and Arabic.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		topics: []topic{
			{
				category: CategoryEligibility,
				keywords: map[string][]string{
					"en": {"eligible", "eligibility", "qualify", "entitled"},
					"ar": {"مؤهل", "الأهلية", "استحقاق"},
				},
				answers: map[string]string{
					"en": "Your eligibility depends on your active policy status. Based on your member record, your policy is active and you are eligible for covered services. For a specific procedure, please share the service code and I can check the coverage terms.",
					"ar": "تعتمد أهليتك على حالة وثيقتك. وفقًا لسجل العضوية، وثيقتك سارية وأنت مؤهل للخدمات المشمولة. لمعرفة إجراء محدد، يرجى مشاركة رمز الخدمة للتحقق من شروط التغطية.",
				},
				confidence: 0.9,
			},
			{
				category: CategoryClaims,
				keywords: map[string][]string{
					"en": {"claim", "claims", "reimburse", "reimbursement", "submitted"},
					"ar": {"مطالبة", "مطالبات", "تعويض"},
				},
				answers: map[string]string{
					"en": "To check a claim, I need the claim reference number. Submitted claims are usually adjudicated within 5 business days. You can also submit a new claim with the invoice, the provider details, and the treating physician's report.",
					"ar": "للاستعلام عن مطالبة، أحتاج إلى رقم المرجع. تتم معالجة المطالبات المقدمة عادة خلال ٥ أيام عمل. يمكنك أيضًا تقديم مطالبة جديدة مع الفاتورة وبيانات مقدم الخدمة وتقرير الطبيب المعالج.",
				},
				confidence: 0.88,
			},
			{
				category: CategoryCoverage,
				keywords: map[string][]string{
					"en": {"cover", "coverage", "covered", "benefit", "benefits", "deductible", "copay"},
					"ar": {"تغطية", "مشمول", "منافع", "تحمل"},
				},
				answers: map[string]string{
					"en": "Your plan covers inpatient and outpatient care, emergency services, maternity, and prescribed medication, subject to the policy's annual limits and deductibles. Dental and optical benefits depend on your plan tier.",
					"ar": "تشمل خطتك التنويم والعيادات الخارجية وخدمات الطوارئ والولادة والأدوية الموصوفة، وفق الحدود السنوية ونسب التحمل في الوثيقة. تعتمد منافع الأسنان والنظارات على فئة خطتك.",
				},
				confidence: 0.87,
			},
			{
				category: CategoryProviders,
				keywords: map[string][]string{
					"en": {"hospital", "clinic", "provider", "network", "doctor", "pharmacy"},
					"ar": {"مستشفى", "عيادة", "شبكة", "طبيب", "صيدلية"},
				},
				answers: map[string]string{
					"en": "You can receive care at any provider in your plan's network without prior approval for outpatient visits. For the nearest network hospital or clinic, share your city and I will list the in-network options.",
					"ar": "يمكنك تلقي الرعاية لدى أي مقدم خدمة ضمن شبكة خطتك دون موافقة مسبقة لزيارات العيادات الخارجية. لمعرفة أقرب مستشفى أو عيادة ضمن الشبكة، شارك مدينتك وسأعرض الخيارات المتاحة.",
				},
				confidence: 0.85,
			},
		},
		fallback: map[string]string{
			"en": "I can help with eligibility checks, claim status and submission, coverage details, and finding network providers. Could you tell me more about what you need?",
			"ar": "يمكنني المساعدة في التحقق من الأهلية وحالة المطالبات وتقديمها وتفاصيل التغطية والعثور على مقدمي الخدمة ضمن الشبكة. هل يمكنك إخباري بما تحتاجه؟",
		},
	}
}

// Generate scores the message against every topic and returns the best
// match, or the general fallback when nothing scores. Never fails: the
// knowledge base is the degradation floor for the whole generator stack.
func (kb *KnowledgeBase) Generate(_ context.Context, message, language, _ string) (stream.Reply, error) {
	lang := normalizeLanguage(language)
	lowered := strings.ToLower(message)

	best := -1
	bestScore := 0
	for i, tp := range kb.topics {
		score := 0
		for _, kw := range tp.keywords[lang] {
			if strings.Contains(lowered, kw) {
				score++
			}
		}
		// Arabic callers often mix English insurance terms.
		if lang != "en" {
			for _, kw := range tp.keywords["en"] {
				if strings.Contains(lowered, kw) {
					score++
				}
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}

	if best < 0 {
		return stream.Reply{
			Text:       kb.answerIn(kb.fallback, lang),
			Confidence: 0.5,
			Category:   CategoryGeneral,
		}, nil
	}

	tp := kb.topics[best]
	return stream.Reply{
		Text:       kb.answerIn(tp.answers, lang),
		Confidence: tp.confidence,
		Category:   tp.category,
	}, nil
}

// answerIn picks the language variant, falling back to English.
func (kb *KnowledgeBase) answerIn(answers map[string]string, lang string) string {
	if text, ok := answers[lang]; ok {
		return text
	}
	return answers["en"]
}

// normalizeLanguage maps a client language tag onto a supported one.
// Anything that is not Arabic is treated as English.
func normalizeLanguage(language string) string {
	if strings.HasPrefix(strings.ToLower(language), "ar") {
		return "ar"
	}
	return "en"
}
