package live

// ClientPage is a minimal browser client. It decodes snapshot and patch
// frames and applies them to a <ul>.
const ClientPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>vbind</title>
</head>
<body>
<ul id="list"></ul>
<script>
(function() {
    'use strict';

    var root = document.getElementById('list');
    var nodes = {};
    var reconnectDelay = 1000;
    var maxReconnectDelay = 30000;

    function reader(buf) {
        var view = new Uint8Array(buf);
        var pos = 0;
        var dec = new TextDecoder();
        return {
            byte: function() { return view[pos++]; },
            uvarint: function() {
                var x = 0, s = 1, b;
                do {
                    b = view[pos++];
                    x += (b & 0x7f) * s;
                    s *= 128;
                } while (b & 0x80);
                return x;
            },
            string: function() {
                var n = this.uvarint();
                var out = dec.decode(view.subarray(pos, pos + n));
                pos += n;
                return out;
            },
            bool: function() { return view[pos++] !== 0; }
        };
    }

    function place(el, after) {
        var ref = after === 0 ? root.firstChild : nodes[after].nextSibling;
        root.insertBefore(el, ref);
    }

    function apply(r) {
        var count = r.uvarint();
        for (var i = 0; i < count; i++) {
            var op = r.byte();
            var id = r.uvarint();
            switch (op) {
            case 0x01:
                nodes[id].textContent = r.string();
                break;
            case 0x02:
                var key = r.string();
                nodes[id].setAttribute(key, r.string());
                break;
            case 0x03:
                nodes[id].removeAttribute(r.string());
                break;
            case 0x04:
                var after = r.uvarint();
                var tag = r.string();
                var el = tag ? document.createElement(tag) : document.createTextNode('');
                el.textContent = r.string();
                nodes[id] = el;
                place(el, after);
                break;
            case 0x05:
                root.removeChild(nodes[id]);
                delete nodes[id];
                break;
            case 0x06:
                place(nodes[id], r.uvarint());
                break;
            }
        }
    }

    function connect() {
        var protocol = location.protocol === 'https:' ? 'wss:' : 'ws:';
        var ws = new WebSocket(protocol + '//' + location.host + '/ws');
        ws.binaryType = 'arraybuffer';

        ws.onopen = function() {
            reconnectDelay = 1000;
        };

        ws.onmessage = function(e) {
            var r = reader(e.data);
            switch (r.byte()) {
            case 0x01:
                root.textContent = '';
                nodes = {};
                apply(r);
                break;
            case 0x02:
                apply(r);
                break;
            case 0x05:
                console.error('[vbind]', r.string(), r.string());
                break;
            }
        };

        ws.onclose = function() {
            setTimeout(function() {
                reconnectDelay = Math.min(reconnectDelay * 2, maxReconnectDelay);
                connect();
            }, reconnectDelay);
        };

        ws.onerror = function() {
            ws.close();
        };
    }

    connect();
})();
</script>
</body>
</html>
`
