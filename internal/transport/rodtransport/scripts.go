package rodtransport

// JS evaluated inside collaborator pages. All selector and widget knowledge
// lives in this file; the engine and the wizard only ever see ok/data
// envelopes.

// jsCheckAuth reports whether the marketplace currently shows its login form.
const jsCheckAuth = `() => {
	const isLoginPage = window.location.pathname.includes('/site/login')
		|| !!document.querySelector('form#login-form')
		|| !!document.querySelector('input[name="LoginForm[username]"]');
	return { isLoginPage, url: window.location.href };
}`

// jsClearFilters resets the city/type/code widgets. Missing widgets are
// skipped so the call stays idempotent.
const jsClearFilters = `() => {
	const fire = (el, type) => el.dispatchEvent(new Event(type, { bubbles: true }));
	const inputs = [
		'input[name*="city" i]', '#city', 'input[placeholder*="city" i]',
		'input[name*="code" i]', '#code', 'input[placeholder*="code" i]'
	];
	for (const sel of inputs) {
		for (const el of document.querySelectorAll(sel)) {
			el.value = '';
			fire(el, 'input');
			fire(el, 'change');
		}
	}
	const selects = ['select[name*="city" i]', 'select[name*="type" i]', 'select[name*="kind" i]', 'select[name*="code" i]', '#type'];
	for (const sel of selects) {
		for (const el of document.querySelectorAll(sel)) {
			el.selectedIndex = -1;
			el.value = '';
			fire(el, 'change');
		}
	}
	// select2-style enhanced widgets render their selection separately.
	for (const el of document.querySelectorAll('.select2-selection__clear')) el.click();
	return { cleared: true };
}`

// jsSetFilter drives one filter widget. It types the value character by
// character so asynchronous suggestion loading fires, waits for suggestions
// to settle, and returns the widget shape, the candidate texts and the
// current read-back value. Candidate choice happens on the Go side.
const jsSetFilter = `async (field, value) => {
	const settle = (ms) => new Promise(r => setTimeout(r, ms));
	const fire = (el, type) => el.dispatchEvent(new Event(type, { bubbles: true }));
	const key = (el, type, ch) => el.dispatchEvent(new KeyboardEvent(type, { key: ch, bubbles: true }));

	const typeInto = async (el, text) => {
		const setter = Object.getOwnPropertyDescriptor(window.HTMLInputElement.prototype, 'value').set;
		setter.call(el, '');
		fire(el, 'input');
		for (const ch of text) {
			setter.call(el, el.value + ch);
			key(el, 'keydown', ch);
			fire(el, 'input');
			key(el, 'keyup', ch);
		}
		fire(el, 'change');
	};

	const selectors = {
		city: { input: 'input[name*="city" i], #city, input[placeholder*="city" i]', select: 'select[name*="city" i]' },
		type: { input: null, select: 'select[name*="type" i], select[name*="kind" i], #type' },
		code: { input: 'input[name*="code" i], #code, input[placeholder*="code" i]', select: 'select[name*="code" i]' }
	};
	const want = selectors[field];
	if (!want) return { shape: 'none', candidates: [], value: '' };

	// (a) enhanced dropdown bound to a select
	const select = want.select ? document.querySelector(want.select) : null;
	if (select && select.nextElementSibling && select.nextElementSibling.classList.contains('select2')) {
		select.nextElementSibling.querySelector('.select2-selection').dispatchEvent(
			new MouseEvent('mousedown', { bubbles: true }));
		await settle(200);
		const search = document.querySelector('.select2-search__field, .select2-search input');
		if (search) {
			await typeInto(search, value);
			await settle(500);
		}
		const items = [...document.querySelectorAll('.select2-results__option')];
		return {
			shape: 'select2',
			candidates: items.map(i => i.textContent.trim()),
			value: select.nextElementSibling.querySelector('.select2-selection__rendered')?.textContent.trim() || ''
		};
	}

	// (b) plain input with autocomplete
	const input = want.input ? document.querySelector(want.input) : null;
	if (input) {
		await typeInto(input, value);
		await settle(500);
		const items = [...document.querySelectorAll(
			'.ui-autocomplete li a, .autocomplete-suggestion, .tt-suggestion, .dropdown-item, .ui-menu-item')];
		return {
			shape: 'autocomplete',
			candidates: items.map(i => i.textContent.trim()),
			value: input.value
		};
	}

	// (c) plain select, no enhancement
	if (select) {
		return {
			shape: 'select',
			candidates: [...select.options].map(o => o.text.trim()),
			value: select.selectedIndex >= 0 ? select.options[select.selectedIndex].text.trim() : ''
		};
	}

	return { shape: 'none', candidates: [], value: '' };
}`

// jsChooseCandidate commits the candidate the Go side picked and returns the
// final read-back value for verification.
const jsChooseCandidate = `async (field, shape, index) => {
	const settle = (ms) => new Promise(r => setTimeout(r, ms));
	const fire = (el, type) => el.dispatchEvent(new Event(type, { bubbles: true }));

	if (shape === 'select2') {
		const items = [...document.querySelectorAll('.select2-results__option')];
		const item = items[index];
		if (!item) return { value: '' };
		item.dispatchEvent(new MouseEvent('mouseup', { bubbles: true }));
		item.click();
		await settle(200);
		const rendered = document.querySelector('.select2-selection__rendered');
		return { value: rendered ? rendered.textContent.trim() : '' };
	}

	if (shape === 'autocomplete') {
		const items = [...document.querySelectorAll(
			'.ui-autocomplete li a, .autocomplete-suggestion, .tt-suggestion, .dropdown-item, .ui-menu-item')];
		const item = items[index];
		if (!item) return { value: '' };
		item.click();
		await settle(200);
		const selectors = {
			city: 'input[name*="city" i], #city, input[placeholder*="city" i]',
			code: 'input[name*="code" i], #code, input[placeholder*="code" i]'
		};
		const input = document.querySelector(selectors[field] || 'input');
		return { value: input ? input.value : '' };
	}

	const selects = {
		city: 'select[name*="city" i]',
		type: 'select[name*="type" i], select[name*="kind" i], #type',
		code: 'select[name*="code" i]'
	};
	const select = document.querySelector(selects[field]);
	if (!select || !select.options[index]) return { value: '' };
	select.value = select.options[index].value;
	fire(select, 'change');
	return { value: select.options[index].text.trim() };
}`

// jsApplyFilters presses the search/apply control.
const jsApplyFilters = `() => {
	const byText = (text) => {
		for (const btn of document.querySelectorAll('button, input[type="submit"], input[type="button"], a.btn')) {
			const label = (btn.textContent || btn.value || '').trim().toLowerCase();
			if (label.includes(text.toLowerCase())) return btn;
		}
		return null;
	};
	const btn = byText('Применить') || byText('Поиск') || byText('Найти') || byText('Apply') || byText('Search')
		|| document.querySelector('button[type="submit"]') || document.querySelector('.btn-primary');
	if (!btn) return { clicked: false, error: 'submit control not found' };
	btn.click();
	return { clicked: true };
}`

// jsPaginationInfo reads the pagination widget.
const jsPaginationInfo = `() => {
	const pages = [];
	for (const link of document.querySelectorAll('.pagination a, .pagination li, .pager a')) {
		const num = parseInt(link.textContent.trim(), 10);
		if (!isNaN(num)) pages.push(num);
	}
	const maxPage = pages.length > 0 ? Math.max(...pages) : 1;
	const active = document.querySelector('.pagination .active, .pagination li.active');
	const currentPage = active ? parseInt(active.textContent.trim(), 10) || 1 : 1;
	return { currentPage, maxPage };
}`

// jsGoToPage clicks the pagination link for the requested page.
const jsGoToPage = `(page) => {
	const links = [...document.querySelectorAll('.pagination a, .pager a, nav a[href*="page"]')];
	for (const link of links) {
		if (link.textContent.trim() === String(page)) { link.click(); return { found: true }; }
	}
	for (const link of links) {
		const href = link.getAttribute('href') || '';
		if (href.includes('page=' + page) || link.dataset.page === String(page)) {
			link.click();
			return { found: true };
		}
	}
	return { found: false, error: 'page ' + page + ' not present in pagination' };
}`

// jsCollectNumbers returns raw candidate texts from number-bearing elements,
// falling back to a phone-shaped scan of the whole page text. Normalization
// and deduplication happen on the Go side.
const jsCollectNumbers = `() => {
	const out = [];
	for (const cell of document.querySelectorAll('td, .number, .phone-number, .did-number, [data-number]')) {
		const text = cell.textContent.trim();
		const cleaned = text.replace(/[\s\-\(\)\+]/g, '');
		if (/^\d{10,11}$/.test(cleaned)) out.push(text);
	}
	if (out.length === 0) {
		const re = /(?:\+?[78])?[\s\-]?\(?\d{3}\)?[\s\-]?\d{3}[\s\-]?\d{2}[\s\-]?\d{2}/g;
		let m;
		while ((m = re.exec(document.body.innerText)) !== null) out.push(m[0]);
	}
	return { numbers: out };
}`

// jsCheckEditor reports whether a ticket compose/note editor is open.
const jsCheckEditor = `() => {
	const available = (typeof CKEDITOR !== 'undefined' && Object.keys(CKEDITOR.instances || {}).length > 0)
		|| !!document.querySelector('#cke_1_contents iframe, .cke_wysiwyg_frame, #RichText iframe, .RichTextEditor iframe')
		|| !!document.querySelector('#RichText, textarea[name="Body"], textarea[name="RichText"], #Body');
	return { available };
}`

// jsInsertNote prepends text to the open ticket editor: CKEditor API first,
// then the WYSIWYG iframe, then a plain textarea.
const jsInsertNote = `(text) => {
	if (typeof CKEDITOR !== 'undefined') {
		const editors = Object.values(CKEDITOR.instances || {});
		if (editors.length > 0) {
			editors[0].insertHtml(text.replace(/\n/g, '<br>'));
			return { inserted: true };
		}
	}
	const iframe = document.querySelector('#cke_1_contents iframe, .cke_wysiwyg_frame, #RichText iframe, .RichTextEditor iframe');
	if (iframe) {
		try {
			const body = (iframe.contentDocument || iframe.contentWindow.document).querySelector('body');
			if (body) {
				body.innerHTML = text.replace(/\n/g, '<br>') + body.innerHTML;
				return { inserted: true };
			}
		} catch (_) { /* cross-origin */ }
	}
	const textarea = document.querySelector('#RichText, textarea[name="Body"], textarea[name="RichText"], #Body');
	if (textarea) {
		textarea.value = text + '\n' + textarea.value;
		textarea.dispatchEvent(new Event('input', { bubbles: true }));
		textarea.dispatchEvent(new Event('change', { bubbles: true }));
		return { inserted: true };
	}
	return { inserted: false, error: 'no reply editor on the page' };
}`

// jsFillByExtra sets a value into the field a step's extra selector names.
const jsFillByExtra = `(selector, value) => {
	const el = document.querySelector(selector);
	if (!el) return { filled: false, error: 'field not found: ' + selector };
	const proto = el instanceof HTMLTextAreaElement ? window.HTMLTextAreaElement : window.HTMLInputElement;
	const setter = Object.getOwnPropertyDescriptor(proto.prototype, 'value').set;
	setter.call(el, value);
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return { filled: true };
}`

// jsSelectOption commits the select option whose text or value contains the
// wanted string and fires change, the way OTRS queue moves expect.
const jsSelectOption = `(selector, wanted) => {
	const select = document.querySelector(selector);
	if (!select || !select.options) return { selected: false, error: 'select not found: ' + selector };
	const option = [...select.options].find(o => o.text.includes(wanted) || o.value.includes(wanted));
	if (!option) return { selected: false, error: 'no option matching ' + wanted };
	select.value = option.value;
	select.dispatchEvent(new Event('change', { bubbles: true }));
	return { selected: true, value: option.text.trim() };
}`

// jsClickByExtra presses the control a step's extra selector or button text
// names.
const jsClickByExtra = `(selector, buttonText) => {
	if (selector) {
		const el = document.querySelector(selector);
		if (el) { el.click(); return { clicked: true }; }
	}
	if (buttonText) {
		for (const btn of document.querySelectorAll('button, input[type="submit"], input[type="button"], a.btn')) {
			const label = (btn.textContent || btn.value || '').trim().toLowerCase();
			if (label.includes(buttonText.toLowerCase())) { btn.click(); return { clicked: true }; }
		}
	}
	return { clicked: false, error: 'control not found' };
}`

// jsRecorderInstall hooks capturing click and input listeners that append raw
// actions to a page-level buffer. Installing twice is a no-op.
const jsRecorderInstall = `() => {
	if (window.__sessionRecorder) return { installed: true };
	const buf = [];
	window.__sessionRecorder = buf;
	const selectorFor = (el) => {
		if (!el || !el.tagName) return '';
		if (el.id) return '#' + el.id;
		if (el.name) return el.tagName.toLowerCase() + '[name="' + el.name + '"]';
		let sel = el.tagName.toLowerCase();
		if (typeof el.className === 'string') {
			const cls = el.className.trim().split(/\s+/).slice(0, 2).join('.');
			if (cls) sel += '.' + cls;
		}
		return sel;
	};
	document.addEventListener('click', (e) => {
		buf.push({ kind: 'click', selector: selectorFor(e.target), at: Date.now() });
	}, true);
	document.addEventListener('input', (e) => {
		buf.push({ kind: 'input', selector: selectorFor(e.target), value: e.target.value || '', at: Date.now() });
	}, true);
	return { installed: true };
}`

// jsRecorderDrain returns and clears the buffered actions. A page that lost
// its hooks to a navigation reports installed=false.
const jsRecorderDrain = `() => {
	const buf = window.__sessionRecorder;
	if (!buf) return { installed: false, actions: [] };
	return { installed: true, actions: buf.splice(0, buf.length) };
}`

// jsWriteClipboard writes text from the page's own script context; clipboard
// calls from an unfocused automation window are rejected by the browser.
const jsWriteClipboard = `async (text) => {
	try {
		await navigator.clipboard.writeText(text);
		return { copied: true };
	} catch (e) {
		return { copied: false, error: String(e) };
	}
}`
