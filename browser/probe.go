package browser

import (
	"strconv"
	"strings"
	"time"

	"github.com/Hooolee/novel-splitter/utils"
)

// Binding is the page-side function the probe calls with {"html": ...}.
const Binding = "spider_response"

// Probe decides when a rendered page is worth harvesting. When any Signal
// selector matches at DOM-ready the page is sent after Grace, otherwise after
// Fallback; Hard fires regardless.
type Probe struct {
	Signals  []string
	Grace    time.Duration
	Fallback time.Duration
	Hard     time.Duration
}

func (p Probe) withDefaults() Probe {
	if p.Grace <= 0 {
		p.Grace = 2 * time.Second
	}
	if p.Fallback <= 0 {
		p.Fallback = 5 * time.Second
	}
	if p.Hard <= 0 {
		p.Hard = 10 * time.Second
	}
	if p.Signals == nil {
		p.Signals = []string{}
	}
	return p
}

const probeTemplate = `(() => {
	if (window.top !== window) return;
	let sent = false;
	const emitOnce = () => {
		if (sent) return;
		sent = true;
		let html = '';
		try {
			html = document.documentElement?.outerHTML || document.body?.outerHTML || '';
		} catch (e) {
			html = '';
		}
		const send = window[__BINDING__];
		if (typeof send === 'function') {
			send(JSON.stringify({ html }));
		}
	};
	const schedule = (delay) => setTimeout(emitOnce, delay);
	const probe = () => {
		const signals = __SIGNALS__;
		const found = signals.some((sel) => {
			try {
				return document.querySelector(sel) !== null;
			} catch (e) {
				return false;
			}
		});
		schedule(found ? __GRACE__ : __FALLBACK__);
	};
	if (document.readyState === 'complete' || document.readyState === 'interactive') {
		probe();
	} else {
		window.addEventListener('DOMContentLoaded', probe, { once: true });
	}
	schedule(__HARD__);
})();`

// Script renders the initialization script injected into every new document.
func (p Probe) Script() string {
	p = p.withDefaults()
	signals, err := utils.JSON.Marshal(p.Signals)
	if err != nil {
		signals = []byte("[]")
	}
	return strings.NewReplacer(
		"__BINDING__", strconv.Quote(Binding),
		"__SIGNALS__", string(signals),
		"__GRACE__", strconv.FormatInt(p.Grace.Milliseconds(), 10),
		"__FALLBACK__", strconv.FormatInt(p.Fallback.Milliseconds(), 10),
		"__HARD__", strconv.FormatInt(p.Hard.Milliseconds(), 10),
	).Replace(probeTemplate)
}
