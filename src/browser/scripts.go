package browser

// Page-side scripts. Each is a function expression evaluated by rod with
// positional arguments.

// overlayMountJS injects the full-viewport overlay, the hint and the hidden
// selection box, and starts queueing input events on window.__yvOverlay.
const overlayMountJS = `(hint) => {
	if (window.__yvOverlay) return false;
	const root = document.createElement('div');
	root.id = '__yv_capture_overlay';
	root.style.cssText = 'position:fixed;inset:0;z-index:2147483647;cursor:crosshair;background:rgba(0,0,0,0.08);';
	const tip = document.createElement('div');
	tip.textContent = hint;
	tip.style.cssText = 'position:fixed;top:12px;left:50%;transform:translateX(-50%);padding:6px 12px;border-radius:6px;background:rgba(0,0,0,0.75);color:#fff;font:13px sans-serif;pointer-events:none;';
	const box = document.createElement('div');
	box.style.cssText = 'position:fixed;display:none;border:2px dashed #ff4f9a;background:rgba(255,79,154,0.12);pointer-events:none;';
	root.appendChild(tip);
	root.appendChild(box);
	document.documentElement.appendChild(root);

	const state = { root, box, queue: [], waiter: null, listeners: [] };
	const push = (ev) => {
		if (state.waiter) {
			const w = state.waiter;
			state.waiter = null;
			w(ev);
			return;
		}
		const last = state.queue[state.queue.length - 1];
		if (ev.kind === 'pointermove' && last && last.kind === 'pointermove') {
			state.queue[state.queue.length - 1] = ev;
			return;
		}
		state.queue.push(ev);
	};
	const on = (target, type, fn) => {
		target.addEventListener(type, fn, true);
		state.listeners.push([target, type, fn]);
	};
	on(root, 'mousedown', (e) => { e.preventDefault(); e.stopPropagation(); push({ kind: 'pointerdown', x: e.clientX, y: e.clientY }); });
	on(root, 'mousemove', (e) => { push({ kind: 'pointermove', x: e.clientX, y: e.clientY }); });
	on(root, 'mouseup', (e) => { e.preventDefault(); e.stopPropagation(); push({ kind: 'pointerup', x: e.clientX, y: e.clientY }); });
	on(window, 'keydown', (e) => { push({ kind: 'keydown', key: e.key }); });
	on(window, 'pagehide', () => { push({ kind: 'closed' }); });
	window.__yvOverlay = state;
	return true;
}`

const overlayDrawJS = `(x, y, w, h) => {
	const o = window.__yvOverlay;
	if (!o) return false;
	const s = o.box.style;
	s.display = 'block';
	s.left = x + 'px';
	s.top = y + 'px';
	s.width = w + 'px';
	s.height = h + 'px';
	return true;
}`

const overlayNextEventJS = `() => new Promise((resolve) => {
	const o = window.__yvOverlay;
	if (!o) { resolve({ kind: 'closed' }); return; }
	if (o.queue.length) { resolve(o.queue.shift()); return; }
	o.waiter = resolve;
})`

const overlayUnmountJS = `() => {
	const o = window.__yvOverlay;
	if (!o) return false;
	for (const [target, type, fn] of o.listeners) target.removeEventListener(type, fn, true);
	if (o.waiter) { const w = o.waiter; o.waiter = null; w({ kind: 'closed' }); }
	o.root.remove();
	delete window.__yvOverlay;
	return true;
}`

const devicePixelRatioJS = `() => window.devicePixelRatio || 1`

const pageFocusedJS = `() => document.visibilityState === 'visible' && document.hasFocus()`

const pageVisibleJS = `() => document.visibilityState === 'visible'`

// imagesJS harvests layout boxes and sources of every <img> in the document.
const imagesJS = `() => Array.from(document.images).map((img) => {
	const r = img.getBoundingClientRect();
	return {
		box: { left: r.left, top: r.top, right: r.right, bottom: r.bottom, width: r.width, height: r.height },
		currentSrc: img.currentSrc || '',
		src: img.src || '',
		dataSrc: img.getAttribute('data-src') || '',
		dataOriginal: img.getAttribute('data-original') || '',
	};
})`
