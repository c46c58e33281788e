package extractor

import (
	"encoding/json"
	"fmt"
)

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// ClickTextScript clicks the first element under selector whose collapsed text equals
// text, falling back to the first that contains it. It evaluates to whether a click happened.
func ClickTextScript(selector, text string) string {
	return fmt.Sprintf(`(() => {
  const want = %s.replace(/\s+/g, " ").trim();
  const nodes = Array.from(document.querySelectorAll(%s));
  const norm = (n) => (n.textContent || "").replace(/\s+/g, " ").trim();
  const hit = nodes.find((n) => norm(n) === want) || nodes.find((n) => norm(n).includes(want));
  if (!hit) return false;
  hit.click();
  return true;
})()`, jsString(text), jsString(selector))
}

// ExistsScript evaluates to whether selector matches anything.
func ExistsScript(selector string) string {
	return fmt.Sprintf(`document.querySelector(%s) !== null`, jsString(selector))
}

// BlockedScript evaluates to a non-empty reason when the page is a denial or challenge page.
func BlockedScript() string {
	return `(() => {
  const title = (document.title || "").toLowerCase();
  const markers = ["access denied", "attention required", "just a moment", "403 forbidden", "too many requests"];
  const hit = markers.find((m) => title.includes(m));
  if (hit) return hit;
  if (document.querySelector("iframe[src*='captcha'], #challenge-form, .cf-browser-verification")) return "captcha challenge";
  return "";
})()`
}

// ExpandScript tags every line group and its header, then clicks the headers of groups
// that render no rows yet. It evaluates to the number of groups clicked.
func ExpandScript(headerSelector, rowSelector, groupAttr, headerAttr string) string {
	return fmt.Sprintf(`(() => {
  const headers = Array.from(document.querySelectorAll(%s));
  let clicked = 0;
  headers.forEach((header, i) => {
    const group = header.parentElement;
    if (!group) return;
    group.setAttribute(%s, String(i));
    header.setAttribute(%s, String(i));
    if (!group.querySelector(%s)) {
      header.click();
      clicked++;
    }
  });
  return clicked;
})()`, jsString(headerSelector), jsString(groupAttr), jsString(headerAttr), jsString(rowSelector))
}

// TagRowsScript stamps each bookmaker row and its odds cells with stable references so
// individual cells can be targeted later. It evaluates to the number of rows tagged.
func TagRowsScript(rowSelector, cellSelector, rowAttr, cellAttr string) string {
	return fmt.Sprintf(`(() => {
  const rows = Array.from(document.querySelectorAll(%s));
  rows.forEach((row, i) => {
    const ref = "r" + i;
    row.setAttribute(%s, ref);
    Array.from(row.querySelectorAll(%s)).forEach((cell, j) => cell.setAttribute(%s, ref + "-" + j));
  });
  return rows.length;
})()`, jsString(rowSelector), jsString(rowAttr), jsString(cellSelector), jsString(cellAttr))
}

// DecimalOddsScript switches the odds display to decimal when the format toggle shows otherwise.
// It evaluates to whether a switch was attempted.
func DecimalOddsScript(toggleSelector string) string {
	return fmt.Sprintf(`(() => {
  const toggle = document.querySelector(%s);
  if (!toggle || /EU Odds|Decimal/i.test(toggle.textContent || "")) return false;
  toggle.click();
  const option = Array.from(document.querySelectorAll("a, span, p, div"))
    .find((n) => n.children.length === 0 && /^(EU Odds|Decimal Odds)$/i.test((n.textContent || "").trim()));
  if (option) option.click();
  return !!option;
})()`, jsString(toggleSelector))
}

// LeaveScript dispatches the pointer-leave events a real mouse would fire when moving
// off the element under selector. It evaluates to whether the element was found.
func LeaveScript(selector string) string {
	return fmt.Sprintf(`(() => {
  const el = document.querySelector(%s);
  if (!el) return false;
  const init = { bubbles: true, cancelable: true, view: window, relatedTarget: document.body };
  el.dispatchEvent(new MouseEvent("mouseout", init));
  el.dispatchEvent(new MouseEvent("mouseleave", { ...init, bubbles: false }));
  return true;
})()`, jsString(selector))
}
