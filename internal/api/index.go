package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="ja">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Whisper Turbo 文字起こし</title>
    <link href="https://cdn.jsdelivr.net/npm/tailwindcss@2.2.19/dist/tailwind.min.css" rel="stylesheet">
</head>
<body class="bg-gray-100 p-8">
    <div class="max-w-4xl mx-auto bg-white p-8 rounded-lg shadow-md">
        <h1 class="text-3xl font-bold mb-6">Whisper Turbo 文字起こし</h1>
        <form id="uploadForm" class="mb-8">
            <div class="mb-4">
                <label for="fileInput" class="block text-sm font-medium text-gray-700 mb-2">音声/動画ファイルを選択</label>
                <input type="file" id="fileInput" accept="audio/*,video/*" multiple required class="block w-full text-sm text-gray-500">
            </div>
            <div class="mb-4">
                <label for="languageSelect" class="block text-sm font-medium text-gray-700 mb-2">言語を選択（任意）</label>
                <select id="languageSelect" class="mt-1 block w-full pl-3 pr-10 py-2 text-base border-gray-300 rounded-md">
                    <option value="auto">自動検出</option>
                    <option value="ja">日本語</option>
                    <option value="en">英語</option>
                    <option value="zh">中国語</option>
                    <option value="ko">韓国語</option>
                    <option value="fr">フランス語</option>
                    <option value="de">ドイツ語</option>
                    <option value="es">スペイン語</option>
                </select>
            </div>
            <div class="mb-4">
                <label class="inline-flex items-center">
                    <input type="checkbox" id="translateCheck" class="form-checkbox h-5 w-5 text-blue-600">
                    <span class="ml-2 text-gray-700">英語に翻訳</span>
                </label>
            </div>
            <button type="submit" class="w-full bg-blue-500 hover:bg-blue-700 text-white font-bold py-2 px-4 rounded">
                文字起こし開始
            </button>
        </form>
        <div id="results" class="space-y-4"></div>
    </div>

    <script>
        const CHUNK_SIZE = 8 * 1024 * 1024;

        async function uploadInChunks(file) {
            const total = Math.max(1, Math.ceil(file.size / CHUNK_SIZE));
            let sessionId = '';
            for (let i = 0; i < total; i++) {
                const payload = file.slice(i * CHUNK_SIZE, (i + 1) * CHUNK_SIZE);
                const form = new FormData();
                form.append('session_id', sessionId);
                form.append('chunk_index', i);
                form.append('total_chunks', total);
                form.append('chunk', payload);
                const resp = await fetch('/upload-chunk', { method: 'POST', body: form });
                if (!resp.ok) throw new Error('チャンクアップロード失敗');
                const ack = await resp.json();
                sessionId = ack.session_id;
            }
            return sessionId;
        }

        async function pollStatus(jobId) {
            for (;;) {
                const resp = await fetch('/status/' + jobId);
                if (!resp.ok) throw new Error('ステータス取得失敗');
                const data = await resp.json();
                if (data.status === 'completed') return data;
                if (data.status === 'error') throw new Error(data.error);
                await new Promise(r => setTimeout(r, 2000));
            }
        }

        document.getElementById('uploadForm').addEventListener('submit', async (e) => {
            e.preventDefault();
            const fileInput = document.getElementById('fileInput');
            const language = document.getElementById('languageSelect').value;
            const translate = document.getElementById('translateCheck').checked;
            const resultsDiv = document.getElementById('results');

            if (fileInput.files.length === 0) {
                alert('少なくとも1つのファイルを選択してください');
                return;
            }
            resultsDiv.innerHTML = '<p class="text-center">文字起こし中...</p>';

            for (let file of fileInput.files) {
                try {
                    const sessionId = await uploadInChunks(file);
                    const resp = await fetch('/finalize-async', {
                        method: 'POST',
                        headers: { 'Content-Type': 'application/json' },
                        body: JSON.stringify({
                            session_id: sessionId,
                            filename: file.name,
                            language: language,
                            translate: translate
                        })
                    });
                    if (!resp.ok) throw new Error('サーバーエラー');
                    const job = await resp.json();
                    const data = await pollStatus(job.job_id);

                    const resultDiv = document.createElement('div');
                    resultDiv.className = 'bg-gray-50 p-4 rounded-lg';
                    resultDiv.innerHTML =
                        '<h3 class="font-bold mb-2">' + file.name + '</h3>' +
                        '<p class="mb-2">' + data.transcription + '</p>' +
                        '<a href="/download/' + data.id + '" class="bg-blue-500 hover:bg-blue-700 text-white font-bold py-1 px-2 rounded">ダウンロード</a>';
                    resultsDiv.appendChild(resultDiv);
                } catch (error) {
                    resultsDiv.innerHTML += '<p class="text-red-500">' + file.name + 'の処理中にエラーが発生しました: ' + error.message + '</p>';
                }
            }
        });
    </script>
</body>
</html>
`
