package rodtransport

// Built-in parse scripts keyed by message name, plus default targets for
// fill and click messages used by the shipped scenarios. Callers can add
// their own parsers with RegisterParser.

func builtinParsers() map[string]string {
	return map[string]string{
		"PARSE_OTRS":       jsParseTicket,
		"PARSE_ACCOUNTING": jsParseAccounting,
		"PARSE_RINGME":     jsParseRingme,
	}
}

var defaultFillSelectors = map[string]string{
	"SUPPORT_SET_LINE": `input[name*="line" i], #line-number, input[placeholder*="line" i], input[placeholder*="номер" i]`,
}

var defaultClickTargets = map[string]struct {
	selector   string
	buttonText string
}{
	"SUPPORT_CLICK_CREATE_ATC": {buttonText: "Создать АТС"},
	"OTRS_MOVE_QUEUE":          {selector: `#DestQueueID, select[name="DestQueueID"]`},
}

// jsParseTicket scrapes the ticket page: ticket number, client code, client
// name and the line number mentioned in the subject or the first article.
const jsParseTicket = `() => {
	const text = (sel) => {
		const el = document.querySelector(sel);
		return el ? el.textContent.trim() : '';
	};

	const title = document.title || '';
	let ticketId = '';
	const tm = title.match(/\d{6,}/) || (text('.ticket-number, #TicketNumber, h1') || '').match(/\d{6,}/);
	if (tm) ticketId = tm[0];

	const body = document.body.innerText || '';
	let clientCode = '';
	const cm = body.match(/(?:клиент|client)[^\d]{0,20}(\d{3,8})/i) || body.match(/\b[A-Z]{2,4}-\d{3,6}\b/);
	if (cm) clientCode = cm[1] || cm[0];

	let lineNumber = '';
	const lm = body.match(/(?:\+?[78])[\s\-]?\(?\d{3}\)?[\s\-]?\d{3}[\s\-]?\d{2}[\s\-]?\d{2}/);
	if (lm) lineNumber = lm[0];

	const clientName = text('.customer-name, #CustomerName, .SidebarColumn .Value');
	const queue = text('.queue-name, #QueueName, [title*="Queue"]');

	if (!ticketId && !clientCode && !lineNumber) {
		return { ok: false, error: 'no ticket data on the page' };
	}
	return { ok: true, data: { ticketId, clientCode, lineNumber, clientName, queue } };
}`

// jsParseAccounting scrapes the client card in the accounting system.
const jsParseAccounting = `() => {
	const pick = (labels) => {
		for (const row of document.querySelectorAll('tr, .form-group, .row, dl > div')) {
			const label = (row.querySelector('th, label, dt, .label') || {}).textContent || '';
			for (const want of labels) {
				if (label.toLowerCase().includes(want)) {
					const val = row.querySelector('td, dd, .value, input, select');
					if (!val) continue;
					return (val.value !== undefined && val.value !== '') ? val.value.trim() : val.textContent.trim();
				}
			}
		}
		return '';
	};

	const clientName = pick(['название', 'наименование', 'name']);
	const atcPlan = pick(['тариф', 'план', 'plan', 'атс']);
	const balance = pick(['баланс', 'balance']);
	const services = [];
	for (const row of document.querySelectorAll('.services tr, .service-row, table.services tbody tr')) {
		const t = row.textContent.trim().replace(/\s+/g, ' ');
		if (t) services.push(t);
	}

	if (!clientName && !atcPlan && services.length === 0) {
		return { ok: false, error: 'no client card on the page' };
	}
	return { ok: true, data: { clientName, atcPlan, balance, services: services.join('; ') } };
}`

// jsParseRingme scrapes the telephony panel for the client's current routing.
const jsParseRingme = `() => {
	const body = document.body.innerText || '';
	const numbers = [];
	const re = /(?:\+?[78])[\s\-]?\(?\d{3}\)?[\s\-]?\d{3}[\s\-]?\d{2}[\s\-]?\d{2}/g;
	let m;
	while ((m = re.exec(body)) !== null && numbers.length < 20) numbers.push(m[0]);

	const statusEl = document.querySelector('.status, .state, .line-status');
	const lineStatus = statusEl ? statusEl.textContent.trim() : '';

	if (numbers.length === 0 && !lineStatus) {
		return { ok: false, error: 'no telephony data on the page' };
	}
	return { ok: true, data: { routedNumbers: numbers.join(', '), lineStatus } };
}`
