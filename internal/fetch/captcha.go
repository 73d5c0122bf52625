package fetch

import (
	"context"
)

// Challenge describes a CAPTCHA encountered on a page.
type Challenge struct {
	// Type names the challenge family: recaptcha, hcaptcha, turnstile.
	Type string `json:"type"`

	// SiteKey is the opaque key the page publishes to the CAPTCHA service.
	SiteKey string `json:"sitekey"`

	// PageURL is the page the challenge appeared on.
	PageURL string `json:"pageUrl"`
}

// Solver obtains response tokens for CAPTCHA challenges, typically through
// an external solving service. A nil solver means challenges are fatal.
type Solver interface {
	Solve(ctx context.Context, challenge Challenge) (string, error)
}

// captchaDetectScript inspects the DOM for known challenge markers and
// returns {type, sitekey}, with an empty type when the page is clean. The
// DOM specifics live entirely in this constant; Go code only sees the
// Challenge it produces.
const captchaDetectScript = `(() => {
	const el = (s) => document.querySelector(s);
	let n = el('.g-recaptcha[data-sitekey]') || el('[data-sitekey][class*="recaptcha"]');
	if (n) return {type: 'recaptcha', sitekey: n.getAttribute('data-sitekey') || ''};
	if (el('iframe[src*="google.com/recaptcha"]')) return {type: 'recaptcha', sitekey: ''};
	n = el('.h-captcha[data-sitekey]');
	if (n) return {type: 'hcaptcha', sitekey: n.getAttribute('data-sitekey') || ''};
	if (el('iframe[src*="hcaptcha.com"]')) return {type: 'hcaptcha', sitekey: ''};
	n = el('.cf-turnstile[data-sitekey]');
	if (n) return {type: 'turnstile', sitekey: n.getAttribute('data-sitekey') || ''};
	if (el('#challenge-form') && el('#cf-please-wait')) return {type: 'turnstile', sitekey: ''};
	return {type: '', sitekey: ''};
})()`

// captchaInjectScript writes a solved token into the conventional response
// fields and fires the change events frameworks listen for. The token is
// passed as %s after JSON escaping.
const captchaInjectScript = `((token) => {
	for (const name of ['g-recaptcha-response', 'h-captcha-response', 'cf-turnstile-response']) {
		for (const n of document.querySelectorAll('textarea[name="' + name + '"], input[name="' + name + '"], #' + name)) {
			n.value = token;
			n.dispatchEvent(new Event('change', {bubbles: true}));
		}
	}
	return true;
})(%s)`
